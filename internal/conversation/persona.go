package conversation

import "math/rand"

// Persona is a barista character the bot speaks as for the duration of a
// chat.
type Persona struct {
	Name        string
	Age         int
	Disposition string
}

var personas = []Persona{
	{Name: "Yumi", Age: 24, Disposition: "ladylike"},
	{Name: "Hana", Age: 19, Disposition: "genki"},
	{Name: "Rin", Age: 22, Disposition: "cool"},
	{Name: "Sora", Age: 21, Disposition: "dreamer"},
}

func randomPersona() Persona {
	return personas[rand.Intn(len(personas))]
}
