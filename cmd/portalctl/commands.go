package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/internal/audit"
	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/portal"
)

var (
	nationalID string
	birthDate  string
	partition  string

	auditSession  string
	auditCategory string
	auditSince    time.Duration
	auditLimit    int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a patient from credentials",
	Example: `  portalctl resolve --national-id 123.456.789-00
  portalctl resolve --national-id 12345678900 --birth-date 1985-04-12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := signIn(cmd)
		if err != nil {
			return err
		}
		profile, err := app.Portal.Profile(cmd.Context(), session)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), profile, func(w io.Writer) {
			fmt.Fprintf(w, "%s\t%s\n", profile.ID, profile.Name)
		})
	},
}

var appointmentsCmd = &cobra.Command{
	Use:   "appointments",
	Short: "List a patient's appointments",
	Example: `  portalctl appointments --national-id 12345678900
  portalctl appointments --national-id 12345678900 --partition past`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := appointments.ParsePartition(partition)
		if err != nil {
			return err
		}
		session, err := signIn(cmd)
		if err != nil {
			return err
		}
		appts, err := app.Portal.ListAppointments(cmd.Context(), session, p)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), appts, func(w io.Writer) {
			if len(appts) == 0 {
				fmt.Fprintf(w, "No %s appointments.\n", p)
				return
			}
			for _, a := range appts {
				fmt.Fprintf(w, "%s\t%s\t%-22s\t%s\n", a.ID, a.StartTime.Local().Format("2006-01-02 15:04"), a.Status, a.Title)
			}
		})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant as a patient",
	Long: `Opens a chat session for the resolved patient and reads one message per
line from stdin. Every turn is audited exactly like portal traffic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := signIn(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		turns, err := app.Portal.ChatHistory(cmd.Context(), session.ID)
		if err != nil {
			return err
		}
		for _, t := range turns {
			fmt.Fprintf(out, "assistant> %s\n", t.Content)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		fmt.Fprint(out, "you> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "/quit" {
				break
			}
			if line != "" {
				turn, err := app.Portal.SendChatTurn(cmd.Context(), session.ID, line)
				if err != nil {
					_, msg := portal.PublicMessage(err)
					fmt.Fprintf(out, "error> %s\n", msg)
				} else {
					fmt.Fprintf(out, "assistant> %s\n", turn.Content)
				}
			}
			fmt.Fprint(out, "you> ")
		}
		fmt.Fprintln(out)
		return scanner.Err()
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read the message audit trail",
	Example: `  portalctl audit --category system_fallback --since 24h
  portalctl audit --session 6f1c... --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.AuditLog == nil {
			return errors.New("audit queries need DATABASE_URL and AUDIT_BACKEND=postgres")
		}
		filter := audit.Filter{
			SessionID: auditSession,
			Category:  auditCategory,
			Limit:     auditLimit,
		}
		if auditSince > 0 {
			filter.Since = time.Now().Add(-auditSince)
		}
		records, err := app.AuditLog.Query(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), records, func(w io.Writer) {
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%-3s\t%-15s\t%s\n",
					r.CreatedAt.Local().Format(time.RFC3339), r.SessionID, r.Direction, r.Category, oneLine(r.Content))
			}
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{resolveCmd, appointmentsCmd, chatCmd} {
		c.Flags().StringVar(&nationalID, "national-id", "", "patient national identifier")
		c.Flags().StringVar(&birthDate, "birth-date", "", "patient birth date (YYYY-MM-DD)")
		_ = c.MarkFlagRequired("national-id")
	}
	appointmentsCmd.Flags().StringVarP(&partition, "partition", "p", "upcoming", "upcoming or past")

	auditCmd.Flags().StringVar(&auditSession, "session", "", "filter by chat session id")
	auditCmd.Flags().StringVar(&auditCategory, "category", "", "filter by category (general, system_fallback)")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only records newer than this")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "max records")
}

func signIn(cmd *cobra.Command) (*portal.Session, error) {
	session, err := app.Portal.ResolveIdentity(cmd.Context(), identity.Credentials{
		NationalID: nationalID,
		BirthDate:  birthDate,
	})
	if err != nil {
		_, msg := portal.PublicMessage(err)
		return nil, fmt.Errorf("%s (%w)", msg, err)
	}
	return session, nil
}

func emit(w io.Writer, v any, text func(io.Writer)) error {
	if !asJSON {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
