package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LeventeLantos/sheet-messaging/internal/model"
)

// DefaultLanguageKey selects the non-English template when a record has no
// language or one that is not mapped.
const DefaultLanguageKey = "default"

// CampaignConfig is the deployment description of which tabs to process and how.
type CampaignConfig struct {
	Contacts ContactTable    `yaml:"contacts"`
	Tables   []CampaignTable `yaml:"tables"`
}

type ContactTable struct {
	Name    string               `yaml:"name"`
	Enabled *bool                `yaml:"enabled"`
	Columns model.ContactColumns `yaml:"columns"`
}

func (c ContactTable) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// CampaignTable configures one campaign tab. Exactly one of Template or
// Templates is set; Templates is keyed by language and must carry a "default".
type CampaignTable struct {
	Name          string                `yaml:"name"`
	Columns       model.CampaignColumns `yaml:"columns"`
	Template      string                `yaml:"template"`
	Templates     map[string]string     `yaml:"templates"`
	BroadcastName string                `yaml:"broadcast_name"`
	Parameters    []ParameterMapping    `yaml:"parameters"`
}

// ParameterMapping binds a template parameter to a column of the campaign tab.
// Required columns must exist in the header; optional ones resolve to "".
type ParameterMapping struct {
	Name     string `yaml:"name"`
	Column   string `yaml:"column"`
	Required bool   `yaml:"required"`
}

// RequiredColumns lists the parameter columns that must be present at load.
func (t CampaignTable) RequiredColumns() []string {
	var out []string
	for _, p := range t.Parameters {
		if p.Required {
			out = append(out, p.Column)
		}
	}
	return out
}

// TemplateFor resolves the template id for a record language.
func (t CampaignTable) TemplateFor(language string) string {
	if len(t.Templates) == 0 {
		return t.Template
	}
	if id, ok := t.Templates[strings.ToLower(strings.TrimSpace(language))]; ok && language != "" {
		return id
	}
	return t.Templates[DefaultLanguageKey]
}

func DefaultCampaigns() CampaignConfig {
	return CampaignConfig{
		Contacts: ContactTable{
			Name:    "Contacts",
			Columns: model.DefaultContactColumns(),
		},
		Tables: []CampaignTable{
			{
				Name:          "Rental",
				Columns:       model.DefaultCampaignColumns(),
				Template:      "woocommerce_default_follow_up_v2",
				BroadcastName: "rental_follow_up",
				Parameters: []ParameterMapping{
					{Name: "name", Column: "Name"},
					{Name: "shop_name", Column: "Shop_Name"},
				},
			},
			{
				Name:    "VIP",
				Columns: model.DefaultCampaignColumns(),
				Templates: map[string]string{
					"en":               "vip_offer_en",
					DefaultLanguageKey: "vip_offer_zh",
				},
				BroadcastName: "vip_offer",
				Parameters: []ParameterMapping{
					{Name: "name", Column: "Name"},
					{Name: "coupon_code", Column: "Coupon_Code"},
					{Name: "message", Column: "Custom_Message"},
				},
			},
		},
	}
}

// LoadCampaigns reads the YAML deployment file at path, or returns the defaults
// when path is empty. Omitted column names fall back to the default headers.
func LoadCampaigns(path string) (CampaignConfig, error) {
	if path == "" {
		return DefaultCampaigns(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return CampaignConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseCampaigns(b)
}

func ParseCampaigns(b []byte) (CampaignConfig, error) {
	var cc CampaignConfig
	if err := yaml.Unmarshal(b, &cc); err != nil {
		return CampaignConfig{}, fmt.Errorf("decode campaign config: %w", err)
	}

	applyDefaults(&cc)
	if err := cc.Validate(); err != nil {
		return CampaignConfig{}, err
	}
	return cc, nil
}

func applyDefaults(cc *CampaignConfig) {
	if cc.Contacts.Name == "" {
		cc.Contacts.Name = "Contacts"
	}
	cc.Contacts.Columns = mergeContactColumns(cc.Contacts.Columns)

	for i := range cc.Tables {
		cc.Tables[i].Columns = mergeCampaignColumns(cc.Tables[i].Columns)
		if len(cc.Tables[i].Templates) > 0 {
			lowered := make(map[string]string, len(cc.Tables[i].Templates))
			for k, v := range cc.Tables[i].Templates {
				lowered[strings.ToLower(strings.TrimSpace(k))] = v
			}
			cc.Tables[i].Templates = lowered
		}
	}
}

func mergeContactColumns(c model.ContactColumns) model.ContactColumns {
	def := model.DefaultContactColumns()
	if c.Phone == "" {
		c.Phone = def.Phone
	}
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.AllowBroadcast == "" {
		c.AllowBroadcast = def.AllowBroadcast
	}
	if c.Added == "" {
		c.Added = def.Added
	}
	return c
}

func mergeCampaignColumns(c model.CampaignColumns) model.CampaignColumns {
	def := model.DefaultCampaignColumns()
	if c.Phone == "" {
		c.Phone = def.Phone
	}
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Language == "" {
		c.Language = def.Language
	}
	if c.Sent == "" {
		c.Sent = def.Sent
	}
	if c.LastSentDate == "" {
		c.LastSentDate = def.LastSentDate
	}
	return c
}

func (cc CampaignConfig) Validate() error {
	var errs []error

	if !cc.Contacts.IsEnabled() && len(cc.Tables) == 0 {
		errs = append(errs, errors.New("nothing to do: contacts disabled and no campaign tables"))
	}

	seen := make(map[string]struct{}, len(cc.Tables))
	for i, t := range cc.Tables {
		label := fmt.Sprintf("tables[%d]", i)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", label))
		} else {
			label = fmt.Sprintf("table %q", t.Name)
			if _, dup := seen[t.Name]; dup {
				errs = append(errs, fmt.Errorf("%s: duplicate table", label))
			}
			seen[t.Name] = struct{}{}
		}

		switch {
		case t.Template == "" && len(t.Templates) == 0:
			errs = append(errs, fmt.Errorf("%s: template or templates is required", label))
		case t.Template != "" && len(t.Templates) > 0:
			errs = append(errs, fmt.Errorf("%s: template and templates are mutually exclusive", label))
		case len(t.Templates) > 0 && t.Templates[DefaultLanguageKey] == "":
			errs = append(errs, fmt.Errorf("%s: templates needs a %q entry", label, DefaultLanguageKey))
		}

		for j, p := range t.Parameters {
			if p.Name == "" || p.Column == "" {
				errs = append(errs, fmt.Errorf("%s: parameters[%d] needs name and column", label, j))
			}
		}
	}

	return errors.Join(errs...)
}
