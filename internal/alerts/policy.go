package alerts

import "github.com/mr1hm/go-emergency-dispatch/internal/models"

// Policy is the default notification treatment for an alert category.
type Policy struct {
	Priority  models.Priority
	Channel   models.Channel
	Selection models.RecipientSelection
}

// PolicyFor maps a category to its default priority, channel and recipients.
// Every category except general is a true emergency and reaches all contacts
// by SMS and voice call.
func PolicyFor(category models.AlertCategory) Policy {
	switch category {
	case models.AlertCategoryMedical, models.AlertCategoryFire, models.AlertCategorySecurity,
		models.AlertCategoryEarthquake, models.AlertCategoryFlood:
		return Policy{
			Priority:  models.PriorityHigh,
			Channel:   models.ChannelBoth,
			Selection: models.SelectAll(),
		}
	default:
		return Policy{
			Priority:  models.PriorityMedium,
			Channel:   models.ChannelSMS,
			Selection: models.SelectRoutine(),
		}
	}
}

// Title is the notification headline for an alert.
func Title(a *models.Alert) string {
	switch a.Category {
	case models.AlertCategoryMedical:
		return "Medical emergency at " + a.Institution.Name
	case models.AlertCategoryFire:
		return "Fire emergency at " + a.Institution.Name
	case models.AlertCategorySecurity:
		return "Security alert at " + a.Institution.Name
	case models.AlertCategoryEarthquake:
		return "Earthquake alert at " + a.Institution.Name
	case models.AlertCategoryFlood:
		return "Flood alert at " + a.Institution.Name
	default:
		return "Notice from " + a.Institution.Name
	}
}

func Body(a *models.Alert) string {
	return a.Description + " Location: " + a.Location + ". Reported by " + a.ReporterName + "."
}
