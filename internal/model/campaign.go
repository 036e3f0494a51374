package model

type CampaignColumns struct {
	Phone        string `yaml:"phone"`
	Name         string `yaml:"name"`
	Language     string `yaml:"language"`
	Sent         string `yaml:"sent"`
	LastSentDate string `yaml:"last_sent_date"`
}

func DefaultCampaignColumns() CampaignColumns {
	return CampaignColumns{
		Phone:        "Phone",
		Name:         "Name",
		Language:     "Language",
		Sent:         "Sent",
		LastSentDate: "Last_Sent_Date",
	}
}

// CampaignRecord is one row of a campaign table. Fields holds every cell keyed by
// header so template parameters can be resolved from arbitrary columns.
type CampaignRecord struct {
	Row          int
	Phone        string
	Name         string
	Language     string
	Sent         bool
	LastSentDate string
	Fields       map[string]string
}

// Field returns the cell under column, or "" when the column is absent.
func (r CampaignRecord) Field(column string) string {
	return r.Fields[column]
}

// ParseCampaign maps raw rows onto typed records. Language is optional; extra lists
// columns that must exist in addition to the fixed ones (required template parameters).
func ParseCampaign(table string, header []string, rows []map[string]string, cols CampaignColumns, extra ...string) ([]CampaignRecord, error) {
	required := append([]string{cols.Phone, cols.Name, cols.Sent, cols.LastSentDate}, extra...)
	if err := requireColumns(table, header, required...); err != nil {
		return nil, err
	}

	out := make([]CampaignRecord, 0, len(rows))
	for i, r := range rows {
		rec := CampaignRecord{
			Row:          i,
			Phone:        r[cols.Phone],
			Name:         r[cols.Name],
			Sent:         ParseBool(r[cols.Sent]),
			LastSentDate: r[cols.LastSentDate],
			Fields:       r,
		}
		if cols.Language != "" {
			rec.Language = r[cols.Language]
		}
		out = append(out, rec)
	}
	return out, nil
}
