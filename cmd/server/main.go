package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/emberline-mud/goember/pkg/boltstore"
	"github.com/emberline-mud/goember/pkg/gamedb"
	"github.com/emberline-mud/goember/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("EMBER_CONF", ""), "Path to game config file (env: EMBER_CONF)")
	boltPath := flag.String("bolt", envDefault("EMBER_BOLT", ""), "Path to bbolt persistent database (env: EMBER_BOLT)")
	sqlPath := flag.String("sqldb", envDefault("EMBER_SQLDB", ""), "Path to SQLite3 message log (env: EMBER_SQLDB)")
	textDir := flag.String("textdir", envDefault("EMBER_TEXTDIR", ""), "Path to text files directory (env: EMBER_TEXTDIR)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: EMBER_PORT)")
	godPass := flag.String("godpass", envDefault("EMBER_GODPASS", ""), "Set God (#1) password and exit (env: EMBER_GODPASS)")
	debug := flag.Bool("debug", os.Getenv("EMBER_DEBUG") == "true", "Enable debug logging (env: EMBER_DEBUG)")
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())
	server.SetDebug(*debug)

	if *port == 0 {
		if envPort := os.Getenv("EMBER_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*port = p
			}
		}
	}

	if *boltPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: goember -bolt <boltfile> [-conf <config>] [-port 6250]")
		fmt.Fprintln(os.Stderr, "       goember -bolt <boltfile> -godpass <newpassword>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Environment variables (used as defaults when flags are not set):")
		fmt.Fprintln(os.Stderr, "  EMBER_CONF     Path to game config file (.yaml)")
		fmt.Fprintln(os.Stderr, "  EMBER_BOLT     Path to bbolt persistent database")
		fmt.Fprintln(os.Stderr, "  EMBER_SQLDB    Path to SQLite3 message log")
		fmt.Fprintln(os.Stderr, "  EMBER_TEXTDIR  Path to text files directory")
		fmt.Fprintln(os.Stderr, "  EMBER_PORT     TCP port to listen on")
		fmt.Fprintln(os.Stderr, "  EMBER_GODPASS  Set God (#1) password and exit")
		fmt.Fprintln(os.Stderr, "  EMBER_DEBUG    Set to 'true' for debug logging")
		os.Exit(1)
	}

	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("Loaded game config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}
	if *port != 0 {
		gc.Port = *port
	}
	if *sqlPath != "" {
		gc.SQLDatabase = *sqlPath
	}
	if *textDir != "" {
		gc.TextDir = *textDir
	}

	store, err := boltstore.Open(*boltPath)
	if err != nil {
		log.Fatalf("Error opening bolt database %s: %v", *boltPath, err)
	}
	defer store.Close()

	if err := store.LoadAll(); err != nil {
		log.Fatalf("Error loading bolt database: %v", err)
	}
	db := store.DB()
	log.Printf("Loaded %d objects from %s", len(db.Objects), *boltPath)

	game := server.NewGame(db, gc)
	game.Store = store

	if len(db.Objects) == 0 {
		seedWorld(game)
	}

	if *godPass != "" {
		setGodPassword(game, *godPass)
		return
	}

	if gc.ComsysEnabled {
		game.Comsys = server.NewComsys()
		channels, aliases, err := store.Channels()
		if err != nil {
			log.Fatalf("Error loading channels: %v", err)
		}
		game.Comsys.LoadChannels(channels, aliases)
	}

	if gc.SQLDatabase != "" {
		msgs, err := server.OpenMessageLog(gc.SQLDatabase, gc.SQLTimeout)
		if err != nil {
			log.Fatalf("Error opening message log %s: %v", gc.SQLDatabase, err)
		}
		defer msgs.Close()
		game.Msgs = msgs
		log.Printf("Message log: %s", gc.SQLDatabase)
	}

	if gc.TextDir != "" {
		game.TextDir = gc.TextDir
		game.Texts = server.LoadTextFiles(gc.TextDir)
		game.WatchTextFiles()
	}

	if gc.MetricsEnabled {
		game.Metrics = server.StartMetrics(game, gc.MetricsPort)
	}

	srv := server.NewServer(game)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %v, shutting down", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Shutdown complete")
}

// seedWorld creates the minimal starting world in an empty database:
// Limbo (#0) and the God player (#1).
func seedWorld(game *server.Game) {
	limbo := game.CreateObject(gamedb.Nothing, "Limbo", gamedb.TypeRoom, gamedb.Nothing)
	limbo.SetAttr("desc", "You float in a formless void.")

	god := game.CreateObject(gamedb.Nothing, "God", gamedb.TypePlayer, gamedb.Nothing)
	god.Owner = god.DBRef
	god.Location = limbo.DBRef
	god.SetFlag(gamedb.FlagWizard)
	god.SetFlag(gamedb.FlagImmortal)
	if err := server.SetPassword(god, "potrzebie"); err != nil {
		log.Fatalf("Error setting initial God password: %v", err)
	}

	game.PersistObjects(limbo, god)
	log.Printf("Seeded new world: %s(%s), %s(%s); change the God password with -godpass",
		limbo.Name, limbo.DBRef, god.Name, god.DBRef)
}

// setGodPassword updates the God player's password and exits.
func setGodPassword(game *server.Game, password string) {
	god, ok := game.DB.Objects[game.GodPlayer()]
	if !ok {
		log.Fatalf("God player %s not found", game.GodPlayer())
	}
	if err := server.SetPassword(god, password); err != nil {
		log.Fatalf("Error setting God password: %v", err)
	}
	game.PersistObject(god)
	log.Printf("Password updated for %s(%s)", god.Name, god.DBRef)
}
