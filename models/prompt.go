package models

// Prompt is the structured input for one completion call.
type Prompt struct {
	System   string
	History  []Turn
	Question string
}

// Turns returns the system instruction, the prior turns in order and the
// new question as the final user turn.
func (p Prompt) Turns() []Turn {
	turns := make([]Turn, 0, len(p.History)+2)
	turns = append(turns, Turn{Role: RoleSystem, Text: p.System})
	turns = append(turns, p.History...)
	turns = append(turns, Turn{Role: RoleUser, Text: p.Question})
	return turns
}
