package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/dominion"
	"github.com/veilcampus/warden/moderation/fingerprint"

	"github.com/olekukonko/tablewriter"
	cli "github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

var bootstrapCmd = &cli.Command{
	Name:  "bootstrap",
	Usage: "install the first prime sovereign (only works on an empty moderator table)",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "moderator id of the prime sovereign",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		eng, err := setupEngine(cctx, slog.Default())
		if err != nil {
			return err
		}
		m, err := eng.Bootstrap(cctx.Context, cctx.String("id"))
		if err != nil {
			return err
		}
		fmt.Printf("bootstrapped %s as %s\n", m.ID, m.Role.Title())
		return nil
	},
}

var mintTokenCmd = &cli.Command{
	Name:  "mint-token",
	Usage: "issue a session token for an existing moderator",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "moderator id the token authenticates",
			Required: true,
		},
		&cli.DurationFlag{
			Name:  "ttl",
			Usage: "token lifetime",
			Value: 12 * time.Hour,
		},
		&cli.StringFlag{
			Name:     "jwt-secret",
			Required: true,
			EnvVars:  []string{"WARDEN_JWT_SECRET"},
		},
	},
	Action: func(cctx *cli.Context) error {
		eng, err := setupEngine(cctx, slog.Default())
		if err != nil {
			return err
		}
		m, err := eng.GetModerator(cctx.Context, cctx.String("id"))
		if err != nil {
			return fmt.Errorf("looking up moderator: %w", err)
		}
		tok, err := MintToken([]byte(cctx.String("jwt-secret")), m.ID, cctx.Duration("ttl"))
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

var hashIdentityCmd = &cli.Command{
	Name:      "hash-identity",
	Usage:     "print the user hash for identity material (eg, a campus email)",
	ArgsUsage: "<material>...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "pepper",
			Usage:    "server-side secret the identity key is derived from",
			Required: true,
			EnvVars:  []string{"WARDEN_IDENTITY_PEPPER"},
		},
		&cli.StringFlag{
			Name:  "device-json",
			Usage: "path to a device fingerprint JSON document to hash as well",
		},
	},
	Action: func(cctx *cli.Context) error {
		h, err := fingerprint.NewHasher([]byte(cctx.String("pepper")))
		if err != nil {
			return err
		}
		for _, material := range cctx.Args().Slice() {
			fmt.Printf("%s\t%s\n", h.User(material), material)
		}
		if p := cctx.String("device-json"); p != "" {
			raw, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			var fp fingerprint.DeviceFingerprint
			if err := json.Unmarshal(raw, &fp); err != nil {
				return fmt.Errorf("parsing device fingerprint: %w", err)
			}
			fmt.Printf("%s\t%s\n", h.Device(fp), p)
		}
		return nil
	},
}

var rolesCmd = &cli.Command{
	Name:  "roles",
	Usage: "print the appointment hierarchy",
	Action: func(cctx *cli.Context) error {
		fmt.Println(rolesTree().String())
		return nil
	},
}

func rolesTree() treeprint.Tree {
	root := authority.Tree()
	tree := treeprint.NewWithRoot(roleLabel(root.Role))
	addRoleBranches(tree, root)
	return tree
}

func addRoleBranches(tree treeprint.Tree, node authority.TreeNode) {
	for _, child := range node.Children {
		if len(child.Children) == 0 {
			tree.AddNode(roleLabel(child.Role))
			continue
		}
		addRoleBranches(tree.AddBranch(roleLabel(child.Role)), child)
	}
}

func roleLabel(r authority.Role) string {
	return fmt.Sprintf("%s (%s, rank %d)", r.Title(), r, r.Rank())
}

var auditFilterFlags = []cli.Flag{
	&cli.StringFlag{Name: "moderator", Usage: "only entries by this moderator id"},
	&cli.StringFlag{Name: "action", Usage: "only entries of this action type"},
	&cli.StringFlag{Name: "user", Usage: "only entries targeting this user hash"},
	&cli.StringFlag{Name: "min-severity", Usage: "only entries at or above this severity"},
	&cli.StringFlag{Name: "start", Usage: "only entries at or after this date"},
	&cli.StringFlag{Name: "end", Usage: "only entries at or before this date"},
	&cli.StringFlag{Name: "limit", Usage: "only the most recent N entries"},
}

func cliAuditFilter(cctx *cli.Context) (audit.Filter, error) {
	return audit.ParseFilter(audit.FilterParams{
		ModeratorID:    cctx.String("moderator"),
		ActionType:     cctx.String("action"),
		TargetUserHash: cctx.String("user"),
		MinSeverity:    cctx.String("min-severity"),
		StartDate:      cctx.String("start"),
		EndDate:        cctx.String("end"),
		Limit:          cctx.String("limit"),
	})
}

var auditCmd = &cli.Command{
	Name:  "audit",
	Usage: "read the moderation audit log",
	Subcommands: []*cli.Command{
		{
			Name:  "export",
			Usage: "write matching entries in the comma separated export format",
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file to write; stdout if empty"},
			}, auditFilterFlags...),
			Action: func(cctx *cli.Context) error {
				f, err := cliAuditFilter(cctx)
				if err != nil {
					return err
				}
				eng, err := setupEngine(cctx, slog.Default())
				if err != nil {
					return err
				}
				out, err := eng.ExportAudit(cctx.Context, nil, f)
				if err != nil {
					return err
				}
				if p := cctx.String("output"); p != "" {
					return os.WriteFile(p, []byte(out), 0644)
				}
				_, err = io.WriteString(os.Stdout, out)
				return err
			},
		},
		{
			Name:  "summary",
			Usage: "print totals by action type and moderator",
			Flags: auditFilterFlags,
			Action: func(cctx *cli.Context) error {
				f, err := cliAuditFilter(cctx)
				if err != nil {
					return err
				}
				eng, err := setupEngine(cctx, slog.Default())
				if err != nil {
					return err
				}
				sum, err := eng.AuditSummary(cctx.Context, nil, f)
				if err != nil {
					return err
				}
				return renderSummary(os.Stdout, sum)
			},
		},
	},
}

func renderSummary(w io.Writer, sum audit.Summary) error {
	table := tablewriter.NewWriter(w)
	rows := [][]string{
		{"total actions", strconv.Itoa(sum.TotalActions)},
		{"average severity", strconv.FormatFloat(sum.AverageSeverity, 'f', 2, 64)},
	}
	if sum.DateRange != nil {
		rows = append(rows,
			[]string{"first entry", sum.DateRange.Start.Format(time.RFC3339)},
			[]string{"last entry", sum.DateRange.End.Format(time.RFC3339)},
		)
	}
	for _, k := range sortedKeys(sum.ByType) {
		rows = append(rows, []string{"action " + k, strconv.Itoa(sum.ByType[k])})
	}
	for _, k := range sortedKeys(sum.ByModerator) {
		rows = append(rows, []string{"moderator " + k, strconv.Itoa(sum.ByModerator[k])})
	}
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return err
		}
	}
	return table.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var territoriesCmd = &cli.Command{
	Name:  "territories",
	Usage: "manage territory to dominion assignments",
	Subcommands: []*cli.Command{
		{
			Name:      "assign",
			Usage:     "assign territories to a dominion",
			ArgsUsage: "<territory-id>...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "dominion", Required: true},
			},
			Action: func(cctx *cli.Context) error {
				if cctx.Args().Len() == 0 {
					return fmt.Errorf("need at least one territory id")
				}
				db, err := setupDatabase(cctx)
				if err != nil {
					return err
				}
				dir := dominion.NewGormDirectory(db)
				if err := dir.AutoMigrate(); err != nil {
					return err
				}
				return dir.Assign(cctx.Context, cctx.String("dominion"), cctx.Args().Slice()...)
			},
		},
	},
}
