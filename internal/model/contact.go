package model

import "fmt"

type ContactColumns struct {
	Phone          string `yaml:"phone"`
	Name           string `yaml:"name"`
	AllowBroadcast string `yaml:"allow_broadcast"`
	Added          string `yaml:"added"`
}

func DefaultContactColumns() ContactColumns {
	return ContactColumns{
		Phone:          "Phone",
		Name:           "Name",
		AllowBroadcast: "Allow_Broadcast",
		Added:          "Added",
	}
}

// Contact is one row of the contacts table. Row is the position in the read sequence.
type Contact struct {
	Row            int
	Phone          string
	Name           string
	AllowBroadcast bool
	Added          bool
}

// ParseContacts maps raw rows onto typed contacts. Every column is required.
func ParseContacts(table string, header []string, rows []map[string]string, cols ContactColumns) ([]Contact, error) {
	if err := requireColumns(table, header, cols.Phone, cols.Name, cols.AllowBroadcast, cols.Added); err != nil {
		return nil, err
	}

	out := make([]Contact, 0, len(rows))
	for i, r := range rows {
		out = append(out, Contact{
			Row:            i,
			Phone:          r[cols.Phone],
			Name:           r[cols.Name],
			AllowBroadcast: ParseBool(r[cols.AllowBroadcast]),
			Added:          ParseBool(r[cols.Added]),
		})
	}
	return out, nil
}

func (c Contact) String() string {
	return fmt.Sprintf("contact(row=%d phone=%s)", c.Row, c.Phone)
}
