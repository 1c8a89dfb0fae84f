package domain

// User holds the energy-coin balance debited by grabs.
type User struct {
	ID       string
	Username string
	Balance  int64
}
