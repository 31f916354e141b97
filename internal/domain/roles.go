package domain

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

// CanManageCatalog reports whether role may create, edit or delete products
// and maintain the category, client and seller lists.
func CanManageCatalog(role string) bool {
	return role == RoleAdmin
}

// CanSell reports whether role may register sales.
func CanSell(role string) bool {
	return role == RoleAdmin || role == RoleSeller
}

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleSeller
}
