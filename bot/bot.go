package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"reputation-bot/backup"
	"reputation-bot/command"
	"reputation-bot/config"
	"reputation-bot/database"
	healthgrpc "reputation-bot/grpc"
	"reputation-bot/kvstore"
	"reputation-bot/leaderboard"
	"reputation-bot/maintenance"
	"reputation-bot/metrics"
	"reputation-bot/platform/discord"
	"reputation-bot/points"
	"reputation-bot/scheduler"
	"reputation-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Bot encapsulates the bot's state and services.
type Bot struct {
	Session  *discordgo.Session
	Commands map[string]command.Command
	GuildID  string
	Auth     *utils.Auth

	DB     *sql.DB
	KV     *kvstore.Store
	Jobs   *scheduler.Scheduler
	Health *healthgrpc.HealthServer

	Identity    *discord.Identity
	Ledger      *database.RankedStore
	Docs        *database.DocumentStore
	Badges      *database.BadgeStore
	Engine      *points.Engine
	Maintenance *maintenance.Service
	Leaderboard *leaderboard.Materializer
	Backup      *backup.Service
	Installer   *Installer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBot loads the configuration, opens storage and wires the services.
func NewBot() (*Bot, error) {
	config.LoadConfig()
	token := viper.GetString("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}
	guildID := viper.GetString("bot.guild_id")
	if guildID == "" {
		return nil, fmt.Errorf("no guild id provided, set bot.guild_id")
	}
	if _, err := config.LoadSettings(viper.GetViper()); err != nil {
		return nil, err
	}

	auth, err := utils.NewAuth()
	if err != nil {
		return nil, fmt.Errorf("failed to load command permissions: %w", err)
	}

	dataDir := viper.GetString("bot.data_dir")
	db, err := database.InitDB(filepath.Join(dataDir, "reputation.db"))
	if err != nil {
		return nil, err
	}
	kv, err := kvstore.Open(kvstore.Config{
		Path:       filepath.Join(dataDir, "kv"),
		Logger:     utils.Logger(),
		GCInterval: 10 * time.Minute,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		kv.Close()
		db.Close()
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		Session:  dg,
		Commands: make(map[string]command.Command),
		GuildID:  guildID,
		Auth:     auth,
		DB:       db,
		KV:       kv,
		Jobs:     scheduler.New(),
		Health:   healthgrpc.NewHealthServer(),
		Ledger:   database.NewRankedStore(db),
		Docs:     database.NewDocumentStore(db),
		Badges:   database.NewBadgeStore(db),
		ctx:      ctx,
		cancel:   cancel,
	}
	b.Identity = discord.NewIdentity(dg, guildID, auth, b.Badges, kv)
	b.Maintenance = maintenance.New(b.Ledger, kv, b.Identity, b.Jobs, b.Health)
	b.Engine = points.NewEngine(b.Ledger, kv, b.Identity, b.Jobs, b.Maintenance)
	b.Leaderboard = &leaderboard.Materializer{Ledger: b.Ledger, Docs: b.Docs, Store: kv, Identity: b.Identity}
	b.Backup = backup.NewService(b.Ledger, b.Docs, kv, b.Jobs, b.Maintenance)
	b.Installer = NewInstaller(kv, b.Jobs, b.Maintenance)
	b.registerJobs()
	return b, nil
}

// Context is cancelled when the bot stops.
func (b *Bot) Context() context.Context {
	return b.ctx
}

// Settings resolves the reputation settings from the current configuration.
func (b *Bot) Settings() (*config.Settings, error) {
	return config.LoadSettings(viper.GetViper())
}

// RegisterCommands registers the provided commands.
func (b *Bot) RegisterCommands(commands []command.Command) {
	for _, cmd := range commands {
		b.Commands[cmd.Definition().Name] = cmd
	}
}

// Start opens the bot's session and registers handlers.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)

	err := b.Session.Open()
	if err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	utils.InitLogger(b.Session)

	defs := make([]*discordgo.ApplicationCommand, 0, len(b.Commands))
	for _, cmd := range b.Commands {
		defs = append(defs, cmd.Definition())
	}
	if _, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, b.GuildID, defs); err != nil {
		log.Printf("Cannot register commands: %v", err)
	}

	metrics.Serve(b.ctx, viper.GetString("bot.metrics_addr"))
	go func() {
		if err := b.Health.Serve(b.ctx, viper.GetString("bot.health_addr")); err != nil {
			utils.Error("bot", "health", err.Error())
		}
	}()

	b.startScheduler(b.ctx)

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop gracefully closes the bot's session and storage.
func (b *Bot) Stop() {
	b.cancel()
	b.stopScheduler()
	if b.Session != nil {
		b.Session.Close()
	}
	if b.KV != nil {
		b.KV.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
	fmt.Println("Bot stopped gracefully.")
}

// Run is the main entry point for the bot application.
func Run(registerHandlers func(*Bot), commands []command.Command) {
	bot, err := NewBot()
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	bot.RegisterCommands(commands)

	if err := bot.Start(registerHandlers); err != nil {
		log.Fatalf("Error starting bot: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
