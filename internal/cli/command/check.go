package command

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/webhost-go/internal/cli/output"
	"github.com/yndnr/webhost-go/internal/infra/confloader"
	"github.com/yndnr/webhost-go/internal/server/admission"
	"github.com/yndnr/webhost-go/internal/server/config"
	"github.com/yndnr/webhost-go/internal/server/listener"
)

// CheckCommand returns the check command.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "validate settings and print the effective configuration and listen plan",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: table, json, yaml",
				Value:   string(output.FormatTable),
			},
			&cli.BoolFlag{
				Name:    "wide",
				Aliases: []string{"w"},
				Usage:   "Show wide output (more columns)",
			},
		},
		Action: runCheck,
	}
}

func runCheck(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	env, err := bootstrap(c, bootstrapOptions{})
	if err != nil {
		return err
	}
	defer env.close()

	report, err := newCheckReport(env)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(c.App.Writer, report)
}

// checkReport is the result of the check command.
type checkReport struct {
	Profile   string         `json:"profile" yaml:"profile"`
	File      string         `json:"settings_file" yaml:"settings_file"`
	Settings  map[string]any `json:"settings" yaml:"settings"`
	Policies  []policyRow    `json:"policies" yaml:"policies"`
	Listeners []listenerRow  `json:"listeners" yaml:"listeners"`

	flat map[string]any
}

type policyRow struct {
	Policy  string `json:"policy" yaml:"policy"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type listenerRow struct {
	Scheme      string    `json:"scheme" yaml:"scheme"`
	Address     string    `json:"address" yaml:"address"`
	Certificate string    `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	NotAfter    time.Time `json:"not_after,omitempty" yaml:"not_after,omitempty" table:"wide"`
}

func newCheckReport(env *environment) (*checkReport, error) {
	safe := config.Sanitize(env.settings)

	tree, err := confloader.Tree(safe)
	if err != nil {
		return nil, err
	}
	flat, err := confloader.Flatten(safe)
	if err != nil {
		return nil, err
	}

	return &checkReport{
		Profile:   string(env.profile),
		File:      env.path,
		Settings:  tree,
		Policies:  describePolicies(env.policies, &env.settings.WebServer),
		Listeners: describeListeners(env.plan),
		flat:      flat,
	}, nil
}

// Tables renders the report as settings, policies and listeners tables.
func (r *checkReport) Tables(wide bool) []*output.Table {
	settings := &output.Table{
		Title:   "settings (" + r.File + ", profile " + r.Profile + ")",
		Headers: []string{"KEY", "VALUE"},
	}
	keys := make([]string, 0, len(r.flat))
	for k := range r.flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		settings.AddRow(k, output.FormatValue(r.flat[k]))
	}

	tables := []*output.Table{settings}
	if t, err := output.NewTable("admission policies", r.Policies, wide); err == nil {
		tables = append(tables, t)
	}
	if t, err := output.NewTable("listeners", r.Listeners, wide); err == nil {
		tables = append(tables, t)
	}
	return tables
}

func describePolicies(p *admission.Policies, s *config.ServerSettings) []policyRow {
	rows := make([]policyRow, 0, 4)

	cors := policyRow{Policy: "cors"}
	if p.CORS != nil {
		cors.Enabled = true
		cors.Detail = p.CORS.Name + ": " + strings.Join(p.CORS.Origins, ",")
	}
	rows = append(rows, cors)

	hosts := policyRow{Policy: "host_filter"}
	if p.Hosts != nil {
		hosts.Enabled = true
		hosts.Detail = strings.Join(s.AllowedHosts, ",")
	}
	rows = append(rows, hosts)

	limit := policyRow{Policy: "rate_limit"}
	if p.RateLimit != nil {
		o := p.RateLimit.Limiter().Options()
		limit.Enabled = true
		limit.Detail = fmt.Sprintf("%d per %s, queue %d, partition %s",
			o.PermitLimit, o.Window, o.QueueLimit, s.RateLimitPartition)
		if o.QueueTimeout > 0 {
			limit.Detail += fmt.Sprintf(", queue timeout %s", o.QueueTimeout)
		}
	}
	rows = append(rows, limit)

	rows = append(rows, policyRow{Policy: "hsts", Enabled: s.HSTS})
	return rows
}

func describeListeners(plan *listener.Plan) []listenerRow {
	rows := make([]listenerRow, 0, len(plan.Specs))
	for _, spec := range plan.Specs {
		row := listenerRow{Scheme: string(spec.Scheme), Address: spec.Address}
		if spec.TLS != nil && len(spec.TLS.Certificates) > 0 {
			if leaf := spec.TLS.Certificates[0].Leaf; leaf != nil {
				row.Certificate = leaf.Subject.CommonName
				row.NotAfter = leaf.NotAfter
			}
			if spec.Development {
				row.Certificate += " (development)"
			}
		}
		rows = append(rows, row)
	}
	return rows
}
