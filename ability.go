package main

// Ability is a one-shot special action. An instance sits in a player's
// inventory until spent; spending it removes exactly that instance.
type Ability struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

const (
	abilityReveal = "reveal"
	abilityTrick  = "trick"
	abilityHelp   = "help"
	abilitySteal  = "steal"

	scorePerAnswer    = 100
	stealAmount       = 50
	abilityCap        = 5
	startingAbilities = 2
	grantProbability  = 0.30
)

var abilityCatalog = []Ability{
	{Type: abilityReveal, Description: "Reveal the correct answer"},
	{Type: abilityTrick, Description: "Swap another player's answer"},
	{Type: abilityHelp, Description: "Peek at another player's answer"},
	{Type: abilitySteal, Description: "Steal points"},
}

func abilityByType(abilityType string) (Ability, bool) {
	for _, a := range abilityCatalog {
		if a.Type == abilityType {
			return a, true
		}
	}
	return Ability{}, false
}

func abilityNeedsTarget(abilityType string) bool {
	switch abilityType {
	case abilitySteal, abilityTrick, abilityHelp:
		return true
	}
	return false
}
