package dashboard

type Badge struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type badgeRule struct {
	Badge
	missions int
	minutes  int
}

var badgeRules = []badgeRule{
	{Badge: Badge{Code: "first_mission", Name: "First step", Description: "Complete your first mission"}, missions: 1},
	{Badge: Badge{Code: "missions_5", Name: "Regular", Description: "Complete 5 missions"}, missions: 5},
	{Badge: Badge{Code: "missions_10", Name: "Pillar", Description: "Complete 10 missions"}, missions: 10},
	{Badge: Badge{Code: "hours_10", Name: "Committed", Description: "Validate 10 hours"}, minutes: 10 * 60},
	{Badge: Badge{Code: "hours_50", Name: "Dedicated", Description: "Validate 50 hours"}, minutes: 50 * 60},
}

// Badges returns the badges earned for the completed missions and validated minutes, in rules order.
func Badges(completedMissions, validatedMinutes int) []Badge {
	earned := make([]Badge, 0, len(badgeRules))
	for _, rule := range badgeRules {
		if rule.missions > 0 && completedMissions < rule.missions {
			continue
		}
		if rule.minutes > 0 && validatedMinutes < rule.minutes {
			continue
		}
		earned = append(earned, rule.Badge)
	}
	return earned
}
