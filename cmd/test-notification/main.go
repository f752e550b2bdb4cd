package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/site-qms/internal/config"
	infraLark "github.com/garyjia/site-qms/internal/infrastructure/external/lark"
)

// Sends one Lark text message through the same messenger the notification
// service uses, to check app credentials and bot visibility.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	openID := flag.String("open-id", "", "recipient open_id (ou_...)")
	text := flag.String("text", "Site QMS notification test", "message text")
	flag.Parse()

	if *openID == "" {
		log.Fatal("-open-id is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Lark.AppID == "" {
		log.Fatal("lark.app_id is not configured")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		Domain:    cfg.Lark.Domain,
	}, logger)
	messenger := infraLark.NewMessenger(client, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := messenger.SendMessage(ctx, *openID, *text); err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}

	fmt.Printf("Message sent to %s\n", *openID)
}
