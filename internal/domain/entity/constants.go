package entity

// Policy constants for WiFi/Mobile reimbursement
const (
	// MonthlyCap is the reimbursable ceiling per billing month, in dollars
	MonthlyCap = 1200

	MaxBillingMonths = 2
	MaxDocuments     = 2

	// AdminDisplayName is the session name given to every admin login
	AdminDisplayName = "Finance Operations"
)

// Months lists the billing month names an employee may select
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// IsValidMonth reports whether name is one of Months
func IsValidMonth(name string) bool {
	for _, m := range Months {
		if m == name {
			return true
		}
	}
	return false
}
