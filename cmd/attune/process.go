package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/engine"
	"github.com/scrypster/attune/internal/notify"
	"github.com/scrypster/attune/internal/storage"
)

// shutdownTimeout bounds the drain on exit.
const shutdownTimeout = 10 * time.Second

func newProcessCmd() *cobra.Command {
	var conversationID string
	var arbitrate bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process messages from stdin, one per line",
		Long: `Reads messages from stdin (one per line), runs each through the full
pipeline, and prints the enhanced message as JSON. With --arbitrate the
value-arbitration result is printed after each message instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			store, err := storage.Open(cfg.Storage, logger)
			if err != nil {
				return err
			}

			var publisher notify.Publisher
			var httpServer *http.Server
			if cfg.Broadcast.Enabled {
				hub := notify.NewHub(cfg.Broadcast.EventsPerSecond, cfg.Broadcast.Burst, logger)
				publisher = hub

				mux := http.NewServeMux()
				mux.Handle("/ws", hub)
				httpServer = &http.Server{Addr: cfg.Broadcast.Addr, Handler: mux}
				go func() {
					if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("broadcast server failed", zap.Error(err))
					}
				}()
				logger.Info("broadcast endpoint listening", zap.String("addr", cfg.Broadcast.Addr))
			}

			eng, err := engine.NewEngine(cfg, store, publisher, nil, logger)
			if err != nil {
				return err
			}
			if err := eng.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := json.NewEncoder(cmd.OutOrStdout())
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 64*1024), 64*1024)

		loop:
			for scanner.Scan() {
				select {
				case <-ctx.Done():
					break loop
				default:
				}

				msg, err := eng.ProcessMessage(ctx, conversationID, scanner.Text())
				if err != nil {
					return err
				}

				if arbitrate {
					result, err := eng.ProcessContext(conversationID)
					if err != nil {
						return err
					}
					if err := out.Encode(result); err != nil {
						return fmt.Errorf("encode arbitration: %w", err)
					}
				} else if err := out.Encode(msg); err != nil {
					return fmt.Errorf("encode message: %w", err)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if httpServer != nil {
				_ = httpServer.Shutdown(shutdownCtx)
			}
			return eng.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "default", "conversation id to process into")
	cmd.Flags().BoolVar(&arbitrate, "arbitrate", false, "print the arbitration result instead of the enhanced message")
	return cmd
}
