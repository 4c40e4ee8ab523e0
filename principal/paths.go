package principal

// Application paths shared by the session manager and the route guard.
const (
	PathLogin          = "/login"
	PathRegister       = "/register"
	PathOwnerLogin     = "/owner-login"
	PathOwnerRegister  = "/owner-register"
	PathDashboard      = "/dashboard"
	PathUserDashboard  = "/dashboard/user"
	PathOwnerDashboard = "/dashboard/owner"
)

// Storage keys used for the persisted bearer token of each kind.
const (
	storageKeyUser  = "accessToken"
	storageKeyOwner = "ownerAccessToken"
)

// LoginPath is the login page for the kind.
func (k Kind) LoginPath() string {
	if k == KindOwner {
		return PathOwnerLogin
	}
	return PathLogin
}

// RegisterPath is the registration page for the kind.
func (k Kind) RegisterPath() string {
	if k == KindOwner {
		return PathOwnerRegister
	}
	return PathRegister
}

// DashboardPath is where the kind lands after authenticating.
func (k Kind) DashboardPath() string {
	if k == KindOwner {
		return PathOwnerDashboard
	}
	return PathUserDashboard
}

// StorageKey is the key the kind's token is persisted under.
func (k Kind) StorageKey() string {
	if k == KindOwner {
		return storageKeyOwner
	}
	return storageKeyUser
}

// Other returns the opposite kind.
func (k Kind) Other() Kind {
	if k == KindOwner {
		return KindUser
	}
	return KindOwner
}
