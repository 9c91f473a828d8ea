// cmd/uponly/status.go
package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/up-only/internal/engine"
	"github.com/rovshanmuradov/up-only/internal/fees"
	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/state"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

type lockView struct {
	Status   string    `yaml:"status"`
	Amount   string    `yaml:"amount"`
	Days     uint64    `yaml:"days"`
	UnlockAt time.Time `yaml:"unlock_at"`
	Referral string    `yaml:"referral,omitempty"`
	Proceeds string    `yaml:"proceeds,omitempty"`
}

type positionView struct {
	Owner    string    `yaml:"owner"`
	HasPass  bool      `yaml:"has_pass"`
	Referral string    `yaml:"referral,omitempty"`
	Payment  string    `yaml:"payment"`
	Sale     string    `yaml:"sale"`
	HasVault bool      `yaml:"has_vault"`
	Lock     *lockView `yaml:"lock,omitempty"`
}

type statusView struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Deployer string `yaml:"deployer"`
	Team     string `yaml:"team"`
	Reserve  string `yaml:"reserve"`
	Supply   string `yaml:"supply"`
	Price    string `yaml:"price"`

	Founders struct {
		Open      bool   `yaml:"open"`
		Count     int    `yaml:"count"`
		Capacity  uint8  `yaml:"capacity"`
		Balance   string `yaml:"balance"`
		Collected string `yaml:"collected"`
		Claimed   string `yaml:"claimed"`
	} `yaml:"founders"`

	Position *positionView `yaml:"position,omitempty"`
}

func newStatusView(s *engine.Snapshot, p *engine.Position) statusView {
	v := statusView{
		Name:     s.Name,
		Symbol:   s.Symbol,
		Deployer: s.Deployer.String(),
		Team:     s.Team.String(),
		Reserve:  ledger.FormatPayment(s.Curve.Reserve),
		Supply:   ledger.FormatSale(s.Curve.Supply),
		Price:    ledger.FormatPayment(s.Price),
	}
	v.Founders.Open = s.FoundersPoolOpen
	v.Founders.Count = s.Founders
	v.Founders.Capacity = s.FoundersCapacity
	v.Founders.Balance = ledger.FormatPayment(s.FoundersBalance)
	v.Founders.Collected = ledger.FormatPayment(s.TotalCollected)
	v.Founders.Claimed = ledger.FormatPayment(s.TotalClaimed)

	if p != nil {
		pv := &positionView{
			Owner:    p.Owner.String(),
			HasPass:  p.HasPass,
			Payment:  ledger.FormatPayment(p.Payment),
			Sale:     ledger.FormatSale(p.Sale),
			HasVault: p.HasVault,
		}
		if p.ReferralSet {
			pv.Referral = p.Referral.String()
		}
		if p.Lock != nil {
			pv.Lock = newLockView(p.Lock)
		}
		v.Position = pv
	}
	return v
}

func newLockView(l *state.LockedTokenState) *lockView {
	lv := &lockView{
		Status:   l.Status.String(),
		Amount:   ledger.FormatSale(l.Amount),
		Days:     l.LockDays,
		UnlockAt: time.Unix(l.UnlockAt, 0).UTC(),
	}
	if l.HasReferral {
		lv.Referral = l.Referral.String()
	}
	if l.Status != state.LockOpen {
		lv.Proceeds = ledger.FormatPayment(l.Proceeds)
	}
	return lv
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
}

func renderStatus(w io.Writer, v statusView) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", v.Name, v.Symbol)) + "\n")
	row(&b, "reserve", v.Reserve)
	row(&b, "supply", v.Supply)
	row(&b, "price", v.Price)
	row(&b, "team", v.Team)
	if v.Founders.Open {
		row(&b, "founders", fmt.Sprintf("%d/%d", v.Founders.Count, v.Founders.Capacity))
		row(&b, "collected", v.Founders.Collected)
		row(&b, "claimed", v.Founders.Claimed)
	}

	if p := v.Position; p != nil {
		b.WriteString("\n" + titleStyle.Render(p.Owner) + "\n")
		row(&b, "pass", fmt.Sprintf("%t", p.HasPass))
		if p.Referral != "" {
			row(&b, "referral", p.Referral)
		}
		row(&b, "payment", p.Payment)
		row(&b, "sale", p.Sale)
		if l := p.Lock; l != nil {
			row(&b, "lock", fmt.Sprintf("%s %s for %dd", l.Status, l.Amount, l.Days))
			row(&b, "unlock at", l.UnlockAt.Format(time.RFC3339))
		}
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderSplit(w io.Writer, s fees.Split) {
	var b strings.Builder
	row(&b, "gross", ledger.FormatPayment(s.Gross))
	if s.Referral > 0 {
		row(&b, "referral", ledger.FormatPayment(s.Referral))
	}
	row(&b, "protocol", ledger.FormatPayment(s.Protocol))
	if s.Founders > 0 {
		row(&b, "founders", ledger.FormatPayment(s.Founders))
	}
	if s.Liquidity > 0 {
		row(&b, "liquidity", ledger.FormatPayment(s.Liquidity))
	}
	row(&b, "net", ledger.FormatPayment(s.Net))
	fmt.Fprint(w, b.String())
}

func renderReceipt(w io.Writer, r *engine.Receipt) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Operation) + "\n")
	row(&b, "signer", r.Signer.String())
	if !r.Subject.IsZero() {
		row(&b, "subject", r.Subject.String())
	}
	if r.Split.Gross > 0 {
		renderSplit(&b, r.Split)
	}
	if r.Minted > 0 {
		row(&b, "minted", ledger.FormatSale(r.Minted))
	}
	if r.Burned > 0 {
		row(&b, "burned", ledger.FormatSale(r.Burned))
	}
	if r.Paid > 0 {
		row(&b, "paid", ledger.FormatPayment(r.Paid))
	}
	row(&b, "reserve", ledger.FormatPayment(r.After.Reserve))
	row(&b, "supply", ledger.FormatSale(r.After.Supply))
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		asYAML bool
		who    string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the curve, the founders pool and optionally a wallet position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			snap, err := eng.Snapshot(ctx)
			if err != nil {
				return err
			}
			var pos *engine.Position
			if who != "" {
				key, err := a.keystore.Resolve(who)
				if err != nil {
					return err
				}
				if pos, err = eng.Position(ctx, key); err != nil {
					return err
				}
			}

			view := newStatusView(snap, pos)
			if asYAML {
				enc := yaml.NewEncoder(a.out)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(view)
			}
			renderStatus(a.out, view)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the snapshot as YAML")
	cmd.Flags().StringVarP(&who, "wallet", "w", "", "include this wallet's position")
	return cmd
}
