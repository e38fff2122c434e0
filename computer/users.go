package computer

// AddUser registers name as a user of this computer, up to MaxUsers.
// Returns a non-empty reason string on failure ("too many users").
func (c *Computer) AddUser(name string) string {
	if len(c.users) == MaxUsers {
		return "too many users"
	}
	c.users = append(c.users, name)
	return ""
}

// DeleteUser removes every user entry matching name.
func (c *Computer) DeleteUser(name string) {
	kept := c.users[:0]
	for _, u := range c.users {
		if u != name {
			kept = append(kept, u)
		}
	}
	c.users = kept
}

// IndexUser returns the idx'th registered user's name, or "" if out of
// range.
func (c *Computer) IndexUser(idx int) string {
	if idx < 0 || idx >= len(c.users) {
		return ""
	}
	return c.users[idx]
}

// IsUser reports whether name is a registered user. When no users have
// ever been registered, every name is considered a user (the reference
// implementation's "wide open until you lock it down" default).
func (c *Computer) IsUser(name string) bool {
	if len(c.users) == 0 {
		return true
	}
	for _, u := range c.users {
		if u == name {
			return true
		}
	}
	return false
}
