package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"lingua-stream/internal/domain"

	"github.com/spf13/cobra"
)

func runChat(cmd *cobra.Command, args []string) error {
	messages := make([]domain.ChatMessage, 0, 2)
	if chatSystem != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.ChatMessageRoleSystem, Content: chatSystem})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.ChatMessageRoleUser, Content: strings.Join(args, " ")})
	settings := domain.RemoteSettings{APIKey: chatAPIKey, APIURL: chatAPIURL}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	if chatNoStream {
		result, err := registry.CompleteBlocking(ctx, chatModel, messages, settings)
		if err != nil {
			printError(errOut, "%s", domain.UserMessage(err))
			return err
		}
		fmt.Fprintln(out, result.Text)
		printFooter(cmd, result)
		return nil
	}

	var (
		result  *domain.CompletionResult
		failure error
	)
	handle, err := registry.Complete(ctx, chatModel, messages, settings, domain.StreamCallbacks{
		OnToken: func(token string) {
			fmt.Fprint(out, token)
		},
		OnComplete: func(r domain.CompletionResult) {
			result = &r
		},
		OnError: func(err error) {
			failure = err
		},
	})
	if err != nil {
		printError(errOut, "%s", domain.UserMessage(err))
		return err
	}

	select {
	case <-handle.Done():
	case <-ctx.Done():
		handle.Cancel()
		<-handle.Done()
	}
	fmt.Fprintln(out)

	switch {
	case result != nil:
		printFooter(cmd, result)
		return nil
	case failure != nil:
		printError(errOut, "%s", domain.UserMessage(failure))
		return failure
	default:
		printWarning(errOut, "Cancelled")
		return errors.New("completion cancelled")
	}
}

func printFooter(cmd *cobra.Command, result *domain.CompletionResult) {
	footer := fmt.Sprintf("%s via %s", result.Model, result.Backend)
	if result.FinishReason != "" {
		footer += ", " + result.FinishReason
	}
	if result.Timings != nil && result.Timings.PredictedTokens > 0 {
		footer += fmt.Sprintf(", %d tokens", result.Timings.PredictedTokens)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), styles.Muted.Render(footer))
}
