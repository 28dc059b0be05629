package credentials

// Realm discriminates the three identity populations the engine serves.
type Realm string

const (
	// RealmPlatform is the single platform administrator realm.
	RealmPlatform Realm = "platform"
	// RealmDeveloper covers developer accounts that own tenant applications.
	RealmDeveloper Realm = "developer"
	// RealmTenantUser covers end-users belonging to a tenant application.
	RealmTenantUser Realm = "tenant_user"
)

// Valid reports whether r is one of the known realms.
func (r Realm) Valid() bool {
	switch r {
	case RealmPlatform, RealmDeveloper, RealmTenantUser:
		return true
	}
	return false
}

// TenantScoped reports whether principals in this realm are scoped to an
// owning tenant. Email uniqueness and signing-key resolution are per tenant
// for scoped realms, global otherwise.
func (r Realm) TenantScoped() bool {
	return r == RealmTenantUser
}
