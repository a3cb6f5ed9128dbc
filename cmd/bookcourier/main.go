package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bookcourier/internal/catalog"
	"bookcourier/internal/config"
	"bookcourier/internal/deliver"
	"bookcourier/internal/model"
	"bookcourier/internal/page"
	"bookcourier/internal/server"
	"bookcourier/internal/store"
	"bookcourier/internal/transport"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger  *zap.Logger
	chatID  int64
	outFile string
)

var rootCmd = &cobra.Command{
	Use:   "bookcourier",
	Short: "bookcourier - tiered book delivery backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ops server against the hybrid store",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("Bad configuration", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Setup Signal Handling (Ctrl+C)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		// Setup Manual 'q' input handling
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if scanner.Text() == "q" {
					fmt.Println(" 'q' pressed. Stopping...")
					cancel()
					return
				}
			}
		}()

		go func() {
			<-sigChan
			logger.Info("Shutting down...")
			cancel()
		}()

		// Initialize Store (FULL MODE - Redis + Badger)
		st, err := store.NewHybridStore(cfg.RedisAddr, cfg.RedisPassword, cfg.BadgerPath)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		srv := server.NewServer(st, logger)
		go func() {
			if err := srv.Start(cfg.OpsAddr); err != nil {
				logger.Error("Ops server stopped", zap.Error(err))
				cancel()
			}
		}()

		logger.Info("Server running.")
		fmt.Println("Press 'q' + Enter or Ctrl+C to stop.")

		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Shutdown error", zap.Error(err))
		}
		logger.Info("Goodbye!")
	},
}

var deliverCmd = &cobra.Command{
	Use:   "deliver [book_id] [variant]",
	Short: "Run one delivery through the tier chain, saving the document locally",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("Bad configuration", zap.Error(err))
		}

		bookID, err := strconv.Atoi(args[0])
		if err != nil {
			logger.Fatal("Invalid book id", zap.String("arg", args[0]))
		}
		variant, err := model.ParseVariant(args[1])
		if err != nil {
			logger.Fatal("Invalid variant", zap.Error(err))
		}

		// Initialize Store (CLIENT MODE - Redis Only)
		// Passing "" as the badger path ensures we don't try to open the BadgerDB file lock.
		st, err := store.NewHybridStore(cfg.RedisAddr, cfg.RedisPassword, "")
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		cat := catalog.New(cfg.CatalogURL, cfg.CatalogPublicURL, cfg.MetadataTimeout, cfg.DownloadTimeout, logger)
		pipeline := deliver.New(cat, st.Cache(), st.Archive(), &logMessenger{logger: logger}, logger, deliver.Config{
			MaxPayload:       cfg.MaxPayloadBytes,
			ArchiveChannelID: cfg.ArchiveChannelID,
			NotifyInterval:   cfg.NotifyInterval,
		})

		ctx := context.Background()
		outcome, err := pipeline.Deliver(ctx, deliver.Request{
			BookID:  bookID,
			Variant: variant,
			ChatID:  chatID,
		})
		if err != nil {
			logger.Fatal("Delivery failed", zap.Error(err))
		}

		logger.Info("Delivered",
			zap.Int("book_id", bookID),
			zap.String("variant", variant.String()),
			zap.String("via", string(outcome.Via)))
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog for books",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("Bad configuration", zap.Error(err))
		}

		cat := catalog.New(cfg.CatalogURL, cfg.CatalogPublicURL, cfg.MetadataTimeout, cfg.DownloadTimeout, logger)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.MetadataTimeout)
		defer cancel()

		langs := model.DefaultPolicy(0).Allowed
		pg, err := cat.SearchBooks(ctx, args[0], langs, page.PageSize, 1)
		if err != nil {
			logger.Fatal("Search failed", zap.Error(err))
		}
		if pg.Empty() {
			fmt.Println("Nothing found.")
			return
		}

		fmt.Printf("Found %d book(s):\n\n", pg.TotalCount)
		for _, book := range pg.Items {
			fmt.Println(book.ListEntry())
		}
	},
}

// logMessenger satisfies the transport boundary for one-shot CLI runs:
// texts go to the log, documents go to the working directory.
type logMessenger struct {
	logger *zap.Logger
	nextID int64
}

func (m *logMessenger) ref(chatID int64) transport.MessageRef {
	m.nextID++
	return transport.MessageRef{ChatID: chatID, MessageID: m.nextID}
}

func (m *logMessenger) SendText(ctx context.Context, chatID int64, text string, opts ...transport.SendOption) (transport.MessageRef, error) {
	m.logger.Info("Message", zap.String("text", text))
	return m.ref(chatID), nil
}

func (m *logMessenger) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ...transport.SendOption) (transport.MessageRef, error) {
	m.logger.Info("Photo", zap.String("url", photoURL), zap.String("caption", caption))
	return m.ref(chatID), nil
}

func (m *logMessenger) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string, opts ...transport.SendOption) (transport.DocumentRef, error) {
	path := filename
	if outFile != "" {
		path = outFile
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return transport.DocumentRef{}, err
	}
	m.logger.Info("Document saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return transport.DocumentRef{MessageRef: m.ref(chatID), Handle: uuid.NewString()}, nil
}

func (m *logMessenger) SendDocumentByHandle(ctx context.Context, chatID int64, handle, caption string, opts ...transport.SendOption) (transport.DocumentRef, error) {
	m.logger.Info("Document resent by handle", zap.String("handle", handle))
	return transport.DocumentRef{MessageRef: m.ref(chatID), Handle: handle}, nil
}

func (m *logMessenger) Forward(ctx context.Context, chatID, fromChatID, messageID int64) (transport.MessageRef, error) {
	// No archive channel to forward from in CLI mode.
	return transport.MessageRef{}, transport.ErrNotFound
}

func (m *logMessenger) EditText(ctx context.Context, chatID, messageID int64, text string, opts ...transport.SendOption) error {
	m.logger.Info("Edit", zap.Int64("message_id", messageID), zap.String("text", text))
	return nil
}

func (m *logMessenger) ChatAction(ctx context.Context, chatID int64, action string) error {
	return nil
}

func main() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	deliverCmd.Flags().Int64Var(&chatID, "chat", 0, "Chat id to address the delivery to")
	deliverCmd.Flags().StringVar(&outFile, "out", "", "Path to save the delivered document (defaults to its derived filename)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deliverCmd)
	rootCmd.AddCommand(searchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
