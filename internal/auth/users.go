// Package auth holds the user directory and decides which branches a user
// may see. Users log in with a password or a Google account; either way the
// directory entry determines role, region and branches.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/xuri/excelize/v2"
)

// Role is the authorization level of a user.
type Role string

// Roles
const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// IsAdmin reports whether the role may choose between several branches.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is one directory entry.
type User struct {
	Email        string   `json:"email,omitempty"`
	Name         string   `json:"name"`
	Role         Role     `json:"role"`
	Region       string   `json:"region,omitempty"`
	Branches     []string `json:"niederlassungen"`
	PasswordHash string   `json:"password_hash,omitempty"`
}

// Unrestricted reports whether the user may see every branch.
func (u User) Unrestricted() bool {
	for _, b := range u.Branches {
		if strings.EqualFold(b, constants.BranchUnrestricted) {
			return true
		}
	}
	return false
}

// Directory is the set of known users and the region to branch mapping.
type Directory struct {
	users   map[string]User
	Regions map[string][]string
}

type directoryFile struct {
	Users   map[string]User     `json:"users"`
	Regions map[string][]string `json:"regions,omitempty"`
}

// DefaultRegions maps the sales regions onto their branches.
func DefaultRegions() map[string][]string {
	return map[string][]string{
		"Mitte": {"Ostwestfalen", "Leipzig", "Peine"},
		"Nord":  {"Hamburg", "Bremen", "Berlin", "Leer"},
		"Süd":   {"Philippsburg", "Augsburg", "Frankfurt", "Saarland"},
	}
}

// NewDirectory builds a directory from users keyed by email.
func NewDirectory(users map[string]User, regions map[string][]string) *Directory {
	d := &Directory{users: make(map[string]User, len(users)), Regions: regions}
	if d.Regions == nil {
		d.Regions = DefaultRegions()
	}
	for email, u := range users {
		d.Add(email, u)
	}
	return d
}

// DefaultDirectory returns the built-in directory. Its entries carry no
// password hashes and can only sign in through Google.
func DefaultDirectory() *Directory {
	regions := DefaultRegions()
	var all []string
	for _, name := range []string{"Mitte", "Nord", "Süd"} {
		all = append(all, regions[name]...)
	}
	return NewDirectory(map[string]User{
		"tgerkens@colle.eu":   {Name: "T. Gerkens", Role: RoleSuperAdmin, Region: "Alle", Branches: all},
		"lhendricks@colle.eu": {Name: "L. Hendricks", Role: RoleAdmin, Region: "Mitte", Branches: regions["Mitte"]},
		"jmueller@colle.eu":   {Name: "J. Mueller", Role: RoleUser, Region: "Mitte", Branches: []string{"Ostwestfalen"}},
		"jblaut@colle.eu":     {Name: "J. Blaut", Role: RoleUser, Region: "Mitte", Branches: []string{"Leipzig"}},
		"mjuenemann@colle.eu": {Name: "M. Juenemann", Role: RoleUser, Region: "Mitte", Branches: []string{"Peine"}},
		"mdrescher@colle.eu":  {Name: "M. Drescher", Role: RoleAdmin, Region: "Nord", Branches: regions["Nord"]},
		"usehlinger@colle.eu": {Name: "U. Sehlinger", Role: RoleAdmin, Region: "Süd", Branches: regions["Süd"]},
	}, regions)
}

// LoadDirectory reads a JSON directory. A missing file yields the built-in
// directory.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return DefaultDirectory(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultDirectory(), nil
		}
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}
	return ParseDirectory(data)
}

// ParseDirectory decodes a JSON directory.
func ParseDirectory(data []byte) (*Directory, error) {
	var file directoryFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse user directory: %w", err)
	}
	for email, u := range file.Users {
		switch u.Role {
		case RoleSuperAdmin, RoleAdmin, RoleUser:
		case "":
			u.Role = RoleUser
			file.Users[email] = u
		default:
			return nil, fmt.Errorf("user %s has unknown role %q", email, u.Role)
		}
	}
	return NewDirectory(file.Users, file.Regions), nil
}

// LoadDirectoryXLSX reads the user sheet with the columns User, Region and
// Niederlassung. A region of the form "Admin Mitte" makes the user an admin
// of region Mitte; branches are comma separated.
func LoadDirectoryXLSX(path string) (*Directory, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user sheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read user sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user sheet %s is empty", path)
	}

	col := make(map[string]int)
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"User", "Region", "Niederlassung"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("user sheet is missing column %s", required)
		}
	}

	cell := func(row []string, name string) string {
		i := col[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	users := make(map[string]User)
	for _, row := range rows[1:] {
		email := strings.ToLower(cell(row, "User"))
		if email == "" || email == "nan" {
			continue
		}
		region := cell(row, "Region")
		role := RoleUser
		if strings.Contains(region, "Admin") {
			role = RoleAdmin
		}
		var branches []string
		for _, b := range strings.Split(cell(row, "Niederlassung"), ",") {
			if b = strings.TrimSpace(b); b != "" {
				branches = append(branches, b)
			}
		}
		users[email] = User{
			Name:     mailboxName(email),
			Role:     role,
			Region:   strings.TrimSpace(strings.Replace(region, "Admin ", "", 1)),
			Branches: branches,
		}
	}
	return NewDirectory(users, nil), nil
}

func mailboxName(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	if local == "" {
		return email
	}
	return strings.ToUpper(local[:1]) + local[1:]
}

// Add inserts or replaces a user.
func (d *Directory) Add(email string, u User) {
	key := normalizeEmail(email)
	u.Email = key
	d.users[key] = u
}

// Lookup returns the user registered under email.
func (d *Directory) Lookup(email string) (User, bool) {
	u, ok := d.users[normalizeEmail(email)]
	return u, ok
}

// Emails returns the registered addresses in sorted order.
func (d *Directory) Emails() []string {
	out := make([]string, 0, len(d.users))
	for e := range d.users {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of users.
func (d *Directory) Len() int {
	return len(d.users)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
