package ldap

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// generalizedTimeLayout is the whenCreated format used by Active Directory.
const generalizedTimeLayout = "20060102150405.0Z"

// adEpoch is the number of 100ns intervals between 1601-01-01 and 1970-01-01.
const adEpoch = 116444736000000000

// maxFileTime is the largest FILETIME representable as a time.Time in nanoseconds.
const maxFileTime = math.MaxInt64/100 + adEpoch

// UnknownUsername is used when an entry carries no usable name.
const UnknownUsername = "unknown"

// UserRecord is the normalized form of a user entry. Only DistinguishedName
// is always set.
type UserRecord struct {
	Username    string
	DisplayName string
	FirstName   string
	LastName    string
	Email       string

	// Organization
	Department string
	Title      string
	Phone      string
	Mobile     string
	Office     string
	Company    string
	Manager    string
	EmployeeID string

	CreatedDate *time.Time
	LastLogon   *time.Time

	DistinguishedName string
	ObjectGUID        string
	ObjectSID         string

	Groups []string
}

// MapEntry converts entry into a UserRecord, reading only available
// attributes. Fields that fail to decode are left empty and reported in a
// *PartialExtractionError; the returned record is usable either way.
func MapEntry(entry *ldap.Entry, available AttributeAvailability) (UserRecord, error) {
	if entry == nil {
		return UserRecord{}, fmt.Errorf("LDAP entry cannot be nil")
	}

	m := entryMapper{entry: entry, available: available}
	record := UserRecord{}

	record.Username = firstNonEmpty(m.get("sAMAccountName"), m.get("cn"), m.get("name"), UnknownUsername)
	record.DisplayName = firstNonEmpty(m.get("displayName"), m.get("cn"), m.get("name"), record.Username)
	record.FirstName = m.get("givenName")
	record.LastName = m.get("sn")
	record.Email = firstNonEmpty(m.get("mail"), m.get("userPrincipalName"))

	record.Department = m.get("department")
	record.Title = m.get("title")
	record.Phone = m.get("telephoneNumber")
	record.Mobile = m.get("mobile")
	record.Office = m.get("physicalDeliveryOfficeName")
	record.Company = m.get("company")
	record.Manager = m.get("manager")
	record.EmployeeID = firstNonEmpty(m.get("employeeID"), m.get("employeeNumber"))

	record.DistinguishedName = firstNonEmpty(m.get("distinguishedName"), entry.DN)

	m.field("whenCreated", func() error {
		t, err := parseGeneralizedTime(m.get("whenCreated"))
		record.CreatedDate = t
		return err
	})
	m.field("lastLogon", func() error {
		t, err := parseFileTime(m.get("lastLogon"))
		record.LastLogon = t
		return err
	})
	m.field("objectGUID", func() error {
		guid, err := extractGUID(entry)
		record.ObjectGUID = guid
		return err
	})
	m.field("objectSid", func() error {
		sid, err := extractSID(entry)
		record.ObjectSID = sid
		return err
	})
	m.field("memberOf", func() error {
		record.Groups = groupNames(entry.GetAttributeValues("memberOf"))
		return nil
	})

	return record, m.err()
}

// groupNames returns the leading common name of each group DN, skipping
// values that yield none.
func groupNames(dns []string) []string {
	groups := make([]string, 0, len(dns))
	for _, dn := range dns {
		if name := LeadingCommonName(dn); name != "" {
			groups = append(groups, name)
		}
	}
	return groups
}

// entryMapper reads attributes of one entry and collects per-field failures.
type entryMapper struct {
	entry     *ldap.Entry
	available AttributeAvailability
	failed    []string
	causes    []error
}

// get returns the first value of attr, or "" when attr is unavailable.
func (m *entryMapper) get(attr string) string {
	if !m.available.Has(attr) {
		return ""
	}
	return strings.TrimSpace(m.entry.GetAttributeValue(attr))
}

// field runs one isolated extraction when attr is available. A failure,
// including a panic, is recorded and does not stop the remaining fields.
func (m *entryMapper) field(attr string, extract func() error) {
	if !m.available.Has(attr) {
		return
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic decoding %s: %v", attr, r)
			}
		}()
		return extract()
	}()
	if err != nil {
		m.failed = append(m.failed, attr)
		m.causes = append(m.causes, fmt.Errorf("%s: %w", attr, err))
	}
}

func (m *entryMapper) err() error {
	if len(m.failed) == 0 {
		return nil
	}
	return &PartialExtractionError{DN: m.entry.DN, Fields: m.failed, Causes: m.causes}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseGeneralizedTime parses whenCreated. An empty value is absent, not an error.
func parseGeneralizedTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(generalizedTimeLayout, value)
	if err != nil {
		// Some servers omit the fraction.
		var fallbackErr error
		if t, fallbackErr = time.Parse("20060102150405Z", value); fallbackErr != nil {
			return nil, fmt.Errorf("invalid generalized time %q: %w", value, err)
		}
	}
	t = t.UTC()
	return &t, nil
}

// errNoFileTime marks a FILETIME that does not denote a real instant.
var errNoFileTime = errors.New("no timestamp")

// parseFileTime parses a FILETIME value (100ns intervals since 1601-01-01 UTC).
// Zero and pre-1970 values mean the event never happened.
func parseFileTime(value string) (*time.Time, error) {
	t, err := fileTimeToTime(value)
	if errors.Is(err, errNoFileTime) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func fileTimeToTime(value string) (time.Time, error) {
	if value == "" || value == "0" {
		return time.Time{}, errNoFileTime
	}

	ticks, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	if ticks <= adEpoch {
		return time.Time{}, errNoFileTime
	}
	if ticks > maxFileTime {
		return time.Time{}, fmt.Errorf("timestamp %d out of range", ticks)
	}

	return time.Unix(0, (ticks-adEpoch)*100).UTC(), nil
}

// MapEntries maps every entry, keeping records whose fields only partly
// decoded. The partial failures are returned alongside the records.
func MapEntries(entries []*ldap.Entry, available AttributeAvailability) ([]UserRecord, []error) {
	records := make([]UserRecord, 0, len(entries))
	var problems []error

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		record, err := MapEntry(entry, available)
		if err != nil {
			problems = append(problems, err)
		}
		records = append(records, record)
	}

	return records, problems
}
