package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/config"
	"smsbridge/pkg/logger"
)

var (
	sendTo   string
	sendText string
	sendFrom string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one SMS and print the confirmation",
	Long:  "Connects the Nexmo adapter without a webhook listener, sends a single Note activity and prints the provider message ids.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		conf, err := runSend(cmd.Context(), cfg, noteActivity(sendFrom, sendTo, sendText), appLogger)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), renderFailure(err))
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderConfirmation(conf))
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient number")
	sendCmd.Flags().StringVar(&sendText, "text", "", "message text")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "sender id (defaults to nexmo.from)")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("text")

	rootCmd.AddCommand(sendCmd)
}

func runSend(ctx context.Context, cfg *config.Config, doc activity.Activity, log *slog.Logger) (activity.Confirmation, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log = log.With("component", "cmd.send")

	adapter, err := buildAdapter(cfg, nil, false, log)
	if err != nil {
		return activity.Confirmation{}, err
	}

	if _, err := adapter.Connect(ctx); err != nil {
		return activity.Confirmation{}, err
	}
	defer func() {
		if err := adapter.Disconnect(context.Background()); err != nil {
			log.Warn("Adapter disconnect failed", "error", err)
		}
	}()

	return adapter.Send(ctx, doc)
}

func noteActivity(from, to, text string) activity.Activity {
	doc := activity.Activity{
		Type:   activity.TypeNote,
		Object: &activity.Object{Type: activity.TypeNote, Content: text},
		To:     &activity.Entity{ID: strings.TrimSpace(to)},
	}
	if from = strings.TrimSpace(from); from != "" {
		doc.Actor = &activity.Entity{ID: from}
	}
	return doc
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("88"))
)

func renderConfirmation(conf activity.Confirmation) string {
	lines := []string{
		titleStyle.Render("SMS " + conf.Type),
		labelStyle.Render("service ") + valueStyle.Render(conf.ServiceID),
	}
	for i, id := range conf.IDs {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("part %d ", i+1))+valueStyle.Render(id))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderFailure(err error) string {
	return errorStyle.Render("send failed") + " " + err.Error()
}
