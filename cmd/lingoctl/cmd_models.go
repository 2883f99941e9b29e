package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lingua-stream/internal/domain"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func runModelsList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	models, err := registry.ListAll(cmd.Context(), domain.RemoteSettings{}, !remoteOnly)
	if err != nil {
		printError(cmd.ErrOrStderr(), "%s", domain.UserMessage(err))
		return err
	}
	if len(models) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No models available"))
		return nil
	}

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		installed := "-"
		if m.IsLocal {
			installed = "no"
			if m.IsInstalled {
				installed = "yes"
			}
		}
		name := m.DisplayName
		if name == "" {
			name = m.OwnedBy
		}
		rows = append(rows, []string{m.ID, name, installed, humanBytes(m.ExpectedByteSize)})
	}
	fmt.Fprintln(out, modelTable([]string{"ID", "NAME", "INSTALLED", "SIZE"}, rows))
	return nil
}

func runModelsPull(cmd *cobra.Command, args []string) error {
	id, _ := domain.ParseModelID(args[0])
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errOut := cmd.ErrOrStderr()
	fmt.Fprintln(errOut, styles.Title.Render("Downloading "+domain.LocalModelID(id)))
	err := library.Download(ctx, id, func(p domain.DownloadProgress) {
		fmt.Fprintf(errOut, "\r  %s / %s (%5.1f%%)", humanBytes(p.BytesWritten), humanBytes(p.TotalBytes), p.Fraction*100)
	})
	fmt.Fprintln(errOut)
	switch {
	case err == nil:
		printSuccess(cmd.OutOrStdout(), "%s is ready", domain.LocalModelID(id))
		return nil
	case errors.Is(err, context.Canceled):
		printWarning(errOut, "Download cancelled")
		return err
	default:
		printError(errOut, "%s", domain.UserMessage(err))
		return err
	}
}

func runModelsRemove(cmd *cobra.Command, args []string) error {
	id, _ := domain.ParseModelID(args[0])
	if err := library.Delete(id); err != nil {
		printError(cmd.ErrOrStderr(), "%s", domain.UserMessage(err))
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Removed %s", domain.LocalModelID(id))
	return nil
}

func runModelsHistory(cmd *cobra.Command, args []string) error {
	query := domain.DownloadQuery{Limit: historyLimit}
	if historyModel != "" {
		id, _ := domain.ParseModelID(historyModel)
		query.ModelID = &id
	}
	if historyStatus != "" {
		status := domain.DownloadStatus(historyStatus)
		switch status {
		case domain.DownloadStatusCompleted, domain.DownloadStatusFailed, domain.DownloadStatusCancelled:
		default:
			return fmt.Errorf("unknown status %q", historyStatus)
		}
		query.Status = &status
	}

	result, err := library.History(query)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(result.Records) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No downloads recorded"))
		return nil
	}

	rows := make([][]string, 0, len(result.Records))
	for _, r := range result.Records {
		rows = append(rows, []string{
			r.FinishedAt.Local().Format("2006-01-02 15:04"),
			domain.LocalModelID(r.ModelID),
			string(r.Status),
			humanBytes(r.BytesWritten),
			r.Error,
		})
	}
	fmt.Fprintln(out, modelTable([]string{"FINISHED", "MODEL", "STATUS", "BYTES", "ERROR"}, rows))
	fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("%d of %d records", len(result.Records), result.TotalItem)))
	return nil
}

func modelTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}
