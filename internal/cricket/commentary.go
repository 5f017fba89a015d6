package cricket

import (
	"fmt"
	"strings"
)

var (
	shotTypes      = []string{"drive", "cut", "pull", "hook", "sweep", "defensive"}
	bowlerTypes    = []string{"fast", "spin", "medium"}
	fielders       = []string{"slip", "point", "cover", "mid-wicket", "long-on"}
	dismissalTypes = []string{"bowled", "caught", "lbw", "run out", "stumped"}
)

// DetailedOutcome is an outcome with commentary for the live feed.
type DetailedOutcome struct {
	Outcome     Outcome
	Description string
	ShotType    string
	BowlerType  string
	Fielder     string // empty unless the description names one
	Dismissal   string // empty unless the outcome is a wicket
}

// DrawDetailed draws an outcome and decorates it with commentary.
// All randomness comes from the generator's source.
func (g *Generator) DrawDetailed() DetailedOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	o := g.pick(g.src.Float64())
	d := DetailedOutcome{
		Outcome:    o,
		ShotType:   shotTypes[g.index(len(shotTypes))],
		BowlerType: bowlerTypes[g.index(len(bowlerTypes))],
	}

	switch {
	case o.IsWicket():
		d.Dismissal = dismissalTypes[g.index(len(dismissalTypes))]
		if d.Dismissal == "caught" {
			d.Fielder = fielders[g.index(len(fielders))]
			d.Description = fmt.Sprintf("Beautiful %s delivery! Caught at %s off a %s.", d.BowlerType, d.Fielder, d.ShotType)
		} else {
			d.Description = fmt.Sprintf("OUT! %s! Great %s bowling.", strings.ToUpper(d.Dismissal), d.BowlerType)
		}
	case o.Runs() == 6:
		d.Description = fmt.Sprintf("HUGE SIX! Massive %s over the boundary!", d.ShotType)
	case o.Runs() == 4:
		d.Description = fmt.Sprintf("FOUR! Elegant %s through the covers.", d.ShotType)
	case o.Runs() == 0:
		d.Description = fmt.Sprintf("Dot ball. Good %s delivery, defended well.", d.BowlerType)
	default:
		d.Fielder = fielders[g.index(len(fielders))]
		d.Description = fmt.Sprintf("%s. %s to %s.", o, capitalize(d.ShotType), d.Fielder)
	}

	return d
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
