package policy

import "github.com/tradedesk/tradedesk-api/models"

// ReportView is the part of a report the gate looks at
type ReportView struct {
	OwnerID         uint
	OwnerDepartment models.DepartmentName
}

// AuthorizeReport evaluates action on a sales report. report is required for
// view, update and delete. Merge and export do not apply to reports.
func AuthorizeReport(actor Actor, action Action, report *ReportView) Decision {
	if needsOrder(action) && report == nil {
		return deny("%s requires a report", action)
	}

	switch action {
	case ActionViewAny:
		return allow()
	case ActionCreate:
		switch actor.Role {
		case models.RoleHead, models.RoleDeputy, models.RoleEmployee:
			return allow()
		default:
			return deny("%s cannot file reports", actor.Role)
		}
	case ActionView:
		if actor.IsDirector() || actor.UserID == report.OwnerID {
			return allow()
		}
		if actor.Role.IsManager() {
			return hrBoundary(actor, report)
		}
		return deny("you can only view your own reports")
	case ActionUpdate:
		switch {
		case actor.IsDirector():
			return allow()
		case actor.Role == models.RoleHead:
			return hrBoundary(actor, report)
		case actor.Role == models.RoleDeputy:
			if actor.Department == report.OwnerDepartment {
				return allow()
			}
			return deny("deputies can only edit reports of their own department")
		case actor.Role == models.RoleEmployee && actor.UserID == report.OwnerID:
			return allow()
		default:
			return deny("you cannot edit this report")
		}
	case ActionDelete:
		switch {
		case actor.IsDirector():
			return allow()
		case actor.Role == models.RoleHead:
			return hrBoundary(actor, report)
		default:
			return deny("only department heads can delete reports")
		}
	default:
		return deny("%s does not apply to reports", action)
	}
}

// hrBoundary keeps HR managers on HR-owned reports
func hrBoundary(actor Actor, report *ReportView) Decision {
	if actor.InDepartment(models.DepartmentHR) && report.OwnerDepartment != models.DepartmentHR {
		return deny("HR managers can only access HR reports")
	}
	return allow()
}

// ReportScope selects the reports in an actor's list. The zero value lists
// everything.
type ReportScope struct {
	Department models.DepartmentName // only reports filed by this department
	OwnerID    uint                  // only reports filed by this user
}

// ListableReports mirrors the view rule: the director and managers see every
// report, HR managers only HR reports, everyone else only their own.
func ListableReports(actor Actor) ReportScope {
	switch {
	case actor.IsDirector():
		return ReportScope{}
	case actor.Role.IsManager() && actor.InDepartment(models.DepartmentHR):
		return ReportScope{Department: models.DepartmentHR}
	case actor.Role.IsManager():
		return ReportScope{}
	default:
		return ReportScope{OwnerID: actor.UserID}
	}
}
