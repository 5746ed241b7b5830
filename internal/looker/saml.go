package looker

// GroupIsMapped reports whether the SAML configuration already contains a
// mapping for the given directory group name.
func (c SamlConfig) GroupIsMapped(name string) bool {
	for _, g := range c.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// AppendGroupMapping returns a copy of the configuration with one additional
// group mapping. Existing entries are always carried over unchanged; this is
// a merge, never a replace. Appending a name that is already mapped returns
// the configuration unmodified.
func AppendGroupMapping(cfg SamlConfig, name string, groupID int64) SamlConfig {
	if cfg.GroupIsMapped(name) {
		return cfg
	}

	merged := make([]SamlGroupMapping, 0, len(cfg.Groups)+1)
	merged = append(merged, cfg.Groups...)
	merged = append(merged, SamlGroupMapping{Name: name, GroupID: ID(groupID)})

	return SamlConfig{Groups: merged}
}
