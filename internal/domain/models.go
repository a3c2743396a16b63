package domain

import "time"

type DrinkType string

const (
	DrinkCoffee DrinkType = "coffee"
	DrinkMate   DrinkType = "mate"
)

// ParseDrinkType maps user input to a drink type.
func ParseDrinkType(s string) (DrinkType, bool) {
	switch DrinkType(s) {
	case DrinkCoffee, DrinkMate:
		return DrinkType(s), true
	}
	return "", false
}

func (d DrinkType) Label() string {
	switch d {
	case DrinkCoffee:
		return "Coffee"
	case DrinkMate:
		return "Mate"
	}
	return string(d)
}

type ActionType string

const (
	ActionActivate    ActionType = "activate"
	ActionChangeEmail ActionType = "change_email"
)

type User struct {
	ID         string
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Location   string
	Public     bool
	Timezone   string
	Token      string
	IsActive   bool
	IsAdmin    bool
	DateJoined time.Time
	UpdatedAt  time.Time
}

func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return ""
}

// DisplayName is the full name when set, the username otherwise.
func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

type UserWithCredentials struct {
	User
	PasswordHash string
	Cryptsum     string
}

// CreateUserParams carries everything needed to insert a user row. Cryptsum
// only gets set when importing accounts from the legacy site.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Cryptsum     string
	Token        string
	FirstName    string
	LastName     string
	Location     string
	IsActive     bool
	IsAdmin      bool
}

// Caffeine is one consumption event. Date is the user-reported instant in the
// record's own Timezone (a copy of the user's timezone at submission time),
// EntryTime is the server-assigned creation timestamp.
type Caffeine struct {
	ID        string
	UserID    string
	CType     DrinkType
	Date      time.Time
	Timezone  string
	EntryTime time.Time
}

type CaffeineActivity struct {
	Caffeine
	Username string
}

// Action is a single-use capability token authorizing one deferred state
// change, consumed exactly once or left to expire.
type Action struct {
	ID         string
	UserID     string
	Code       string
	AType      ActionType
	Data       string
	Created    time.Time
	ValidUntil time.Time
}

// Application is an OAuth2 client registration awaiting or holding approval.
// Rejection deletes the row, so a persisted application is either pending
// (Approved == false) or approved.
type Application struct {
	ID           string
	UserID       string
	Name         string
	Description  string
	Website      string
	LogoURL      string
	ClientID     string
	ClientSecret string
	ClientType   string
	GrantType    string
	RedirectURIs string
	Agree        bool
	Approved     bool
	ApprovedBy   string
	ApprovedOn   *time.Time
	Created      time.Time
}

// CreateApplicationParams carries a new client registration including its
// freshly generated credentials.
type CreateApplicationParams struct {
	UserID       string
	Name         string
	Description  string
	Website      string
	LogoURL      string
	ClientID     string
	ClientSecret string
	ClientType   string
	GrantType    string
	RedirectURIs string
	Agree        bool
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}
