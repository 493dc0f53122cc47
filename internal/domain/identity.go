package domain

import "fmt"

// Identity is the unprivileged principal the service runs as.
type Identity struct {
	Name string `json:"name"`
	UID  int    `json:"uid"`
	GID  int    `json:"gid"`
	Home string `json:"home,omitempty"`
}

// Validate rejects identities that resolve to an administrative principal.
func (i Identity) Validate() error {
	if i.UID == 0 || i.GID == 0 {
		return fmt.Errorf("%w: %s (uid=%d gid=%d)", ErrPrivilegedIdentity, i.Name, i.UID, i.GID)
	}
	if i.UID < 0 || i.GID < 0 {
		return fmt.Errorf("%w: %s has no numeric ids", ErrIdentityMissing, i.Name)
	}
	return nil
}

// Owns reports whether the given uid/gid pair belongs to the identity.
func (i Identity) Owns(uid, gid int) bool {
	return uid == i.UID && gid == i.GID
}

// String returns "name(uid:gid)".
func (i Identity) String() string {
	return fmt.Sprintf("%s(%d:%d)", i.Name, i.UID, i.GID)
}
