package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcelsud/webhook-outbox/config"
	"github.com/marcelsud/webhook-outbox/webhook"
	redisrepo "github.com/marcelsud/webhook-outbox/webhook/redis"
)

// Admin smoke tool: registers an endpoint and fires a test event
// through the real delivery path
func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx := context.Background()
	repo, err := redisrepo.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)

	sender := webhook.NewSender(repo, nil)
	dispatcher := webhook.NewDispatcher(sender, 2, 16)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	s := webhook.NewService(repo, sender, dispatcher)
	endpoint, err := s.CreateEndpoint(ctx, webhook.CreateEndpointParams{
		URL:    "https://example.com/hooks",
		Events: []webhook.EventType{webhook.ItemCreated, webhook.PriceChanged},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Created endpoint %s\n", endpoint.ID)

	deliveries, err := s.Trigger(ctx, webhook.ItemCreated, json.RawMessage(`{"id":42,"title":"smoke test"}`), "")
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, d := range deliveries {
		fmt.Printf("Created delivery %s for endpoint %s\n", d.ID, d.EndpointID)
	}
}
