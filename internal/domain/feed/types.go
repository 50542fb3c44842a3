package feed

// ReportType classifies an incident report.
type ReportType string

const (
	TypeHealth        ReportType = "health"
	TypeSecurity      ReportType = "security"
	TypeEnvironmental ReportType = "environmental"
	TypeLostFound     ReportType = "lost_found"
	TypeTechnical     ReportType = "technical"
)

// ReportTypes lists every valid report type in display order.
func ReportTypes() []ReportType {
	return []ReportType{TypeHealth, TypeSecurity, TypeEnvironmental, TypeLostFound, TypeTechnical}
}

// ReportStatus is the triage state of a report.
type ReportStatus string

const (
	StatusOpen     ReportStatus = "open"
	StatusInReview ReportStatus = "in_review"
	StatusResolved ReportStatus = "resolved"
)

// Role of an authenticated principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Location is a point on campus with an optional human-readable address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Report is an incident report. The store is the source of truth; copies held
// in snapshots are never mutated in place.
//
// CreatedByName is denormalized at creation time and intentionally frozen:
// later display-name changes do not rewrite existing reports.
type Report struct {
	ID            string       `json:"id"`
	Type          ReportType   `json:"type"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Location      Location     `json:"location"`
	Status        ReportStatus `json:"status"`
	CreatedBy     string       `json:"createdBy"`
	CreatedByName string       `json:"createdByName"`
	CreatedAt     string       `json:"createdAt"`
	UpdatedAt     string       `json:"updatedAt"`
	PhotoURL      string       `json:"photoUrl,omitempty"`
	FollowedBy    []string     `json:"followedBy"`
}

// IsFollowedBy reports whether userID is in the follower set.
func (r Report) IsFollowedBy(userID string) bool {
	for _, id := range r.FollowedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// EmergencyAlert is an admin broadcast. Append-only: never mutated after
// creation.
type EmergencyAlert struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
	CreatedBy string `json:"createdBy"`
}

// Principal is the authenticated identity consumed from the identity provider.
type Principal struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Department  string `json:"department,omitempty"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
