package report

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion is the report layout written by this build
const SchemaVersion = "1.1"

// legacySchemaVersion is assumed for reports written before the field existed
const legacySchemaVersion = "1.0"

// migration upgrades a report to the version it is keyed by
type migration func(*Report) error

var migrations = map[string]migration{
	"1.1": migrateRanks,
}

// Migrate upgrades r in place to SchemaVersion
func Migrate(r *Report) error {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if r.SchemaVersion == "" {
		r.SchemaVersion = legacySchemaVersion
	}
	if r.SchemaVersion == SchemaVersion {
		return nil
	}
	if err := CheckCompatibility(r.SchemaVersion); err != nil {
		return err
	}

	current, _ := parseVersion(r.SchemaVersion)
	pending := make(semver.Collection, 0, len(migrations))
	for version := range migrations {
		v, err := parseVersion(version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", version, err)
		}
		if current.LessThan(v) {
			pending = append(pending, v)
		}
	}
	sort.Sort(pending)

	for _, v := range pending {
		if err := migrations[v.Original()](r); err != nil {
			return fmt.Errorf("migration to %s failed: %w", v.Original(), err)
		}
	}

	r.SchemaVersion = SchemaVersion
	return nil
}

// CheckCompatibility reports whether a report of the given schema version
// can be read. Newer patch releases are accepted; newer minor or major
// versions and older major versions are not.
func CheckCompatibility(version string) error {
	current, err := parseVersion(version)
	if err != nil {
		return err
	}
	target, err := parseVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", SchemaVersion)
	}

	switch {
	case current.Major() > target.Major(),
		current.Major() == target.Major() && current.Minor() > target.Minor():
		return fmt.Errorf("report schema version %s is newer than supported version %s", version, SchemaVersion)
	case current.Major() < target.Major():
		return fmt.Errorf("no migration path from report schema version %s to %s", version, SchemaVersion)
	}
	return nil
}

// parseVersion accepts full and two-part versions such as "1.0"
func parseVersion(version string) (*semver.Version, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid schema version: %s", version)
	}
	return v, nil
}

// migrateRanks numbers entries of 1.0 reports, which were ranked by position
func migrateRanks(r *Report) error {
	for i := range r.Strategies {
		if r.Strategies[i].Rank == 0 {
			r.Strategies[i].Rank = i + 1
		}
	}
	return nil
}
