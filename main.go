package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"reputation-bot/bot"
	"reputation-bot/command"
	"reputation-bot/config"
	healthgrpc "reputation-bot/grpc"
	"reputation-bot/handlers"

	"github.com/spf13/viper"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck())
	}
	bot.Run(handlers.Register, command.AllCommands)
}

// healthcheck queries the running bot's health server and returns the process exit code.
func healthcheck() int {
	config.LoadConfig()
	addr := viper.GetString("bot.health_addr")
	if addr == "" {
		fmt.Println("bot.health_addr is not set")
		return 1
	}

	client, err := healthgrpc.NewClient(addr, 5*time.Second)
	if err != nil {
		fmt.Printf("Error connecting to %s: %v\n", addr, err)
		return 1
	}
	defer client.Close()

	status, err := client.Check(context.Background(), "")
	if err != nil {
		fmt.Printf("Health check failed: %v\n", err)
		return 1
	}
	fmt.Println(status.String())
	if status != healthpb.HealthCheckResponse_SERVING {
		return 1
	}
	return 0
}
