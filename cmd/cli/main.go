package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/himanishpuri/SongSleuth/pkg/logger"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/storage"
)

// Global flags
var (
	backend    string
	dbPath     string
	mongoURI   string
	tempDir    string
	sampleRate int
)

var (
	success = color.New(color.FgGreen, color.Bold)
	failure = color.New(color.FgRed, color.Bold)
	faint   = color.New(color.Faint)
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func registerGlobalFlags() {
	flag.StringVar(&backend, "backend", getEnvOrDefault("SONGSLEUTH_BACKEND", songsleuth.BackendSQLite), "Index backend: sqlite, badger, memory or mongo")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("SONGSLEUTH_DB_PATH", storage.DefaultDBFile), "SQLite file or badger directory")
	flag.StringVar(&mongoURI, "mongo", os.Getenv("SONGSLEUTH_MONGO_URI"), "MongoDB connection URI")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("SONGSLEUTH_TEMP_DIR", os.TempDir()), "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", fingerprint.DefaultSampleRate, "Analysis sample rate")
	flag.Usage = printUsage
}

func createService() (songsleuth.Service, error) {
	return songsleuth.NewService(
		songsleuth.WithBackend(backend),
		songsleuth.WithDBPath(dbPath),
		songsleuth.WithMongoURI(mongoURI),
		songsleuth.WithTempDir(tempDir),
		songsleuth.WithSampleRate(sampleRate),
	)
}

// mustService creates the service or exits.
func mustService() songsleuth.Service {
	fmt.Println("🔧 Initializing service...")
	svc, err := createService()
	if err != nil {
		fatal("Failed to create service", err)
	}
	return svc
}

func fatal(what string, err error) {
	failure.Printf("\n❌ %s: %v\n", what, err)
	logger.GetLogger().Errorf("%s: %v", what, err)
	os.Exit(1)
}

// splitArgs separates positional arguments from flags so that
// "add song.mp3 -title X" and "add -title X song.mp3" both parse.
func splitArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	return positional, nil
}

func main() {
	_ = godotenv.Load()
	registerGlobalFlags()
	flag.Parse()

	if flag.NArg() < 1 {
		printBanner()
		printUsage()
		os.Exit(1)
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	logger.GetLogger().Debugf("Executing command: %s", command)

	switch command {
	case "add":
		handleAdd(args)
	case "add-dir":
		handleAddDir(args)
	case "match":
		handleMatch(args)
	case "listen":
		handleListen(args)
	case "list":
		handleList()
	case "delete":
		handleDelete(args)
	case "spectrogram":
		handleSpectrogram(args)
	case "help", "-h", "--help":
		printBanner()
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
  ____                   ____  _            _   _
 / ___|  ___  _ __   __ / ___|| | ___ _   _| |_| |__
 \___ \ / _ \| '_ \ / _` + "`" + ` \___ \| |/ _ \ | | | __| '_ \
  ___) | (_) | | | | (_| |___) | |  __/ |_| | |_| | | |
 |____/ \___/|_| |_|\__, |____/|_|\___|\__,_|\__|_| |_|
                    |___/
           Audio Fingerprinting CLI Tool
`
	color.Cyan(banner)
}

func printUsage() {
	fmt.Println("SongSleuth - Audio Fingerprinting CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  -backend <name>   sqlite, badger, memory or mongo (env: SONGSLEUTH_BACKEND, default: sqlite)")
	fmt.Println("  -db <path>        SQLite file or badger directory (env: SONGSLEUTH_DB_PATH, default: " + storage.DefaultDBFile + ")")
	fmt.Println("  -mongo <uri>      MongoDB URI (env: SONGSLEUTH_MONGO_URI)")
	fmt.Println("  -temp <dir>       Temporary directory for audio conversion (env: SONGSLEUTH_TEMP_DIR)")
	fmt.Printf("  -rate <hz>        Analysis sample rate (default: %d)\n", fingerprint.DefaultSampleRate)
	fmt.Println("\nUsage:")
	fmt.Println("  songsleuth [global-options] add <audio_file> [-title <title>] [-artist <artist>]")
	fmt.Println("  songsleuth [global-options] add-dir <dir> [-workers <n>]")
	fmt.Println("  songsleuth [global-options] match <audio_file> [-limit <n>]")
	fmt.Println("  songsleuth [global-options] listen [-stdin] [-in-rate <hz>] [-timeout <dur>]")
	fmt.Println("  songsleuth [global-options] list")
	fmt.Println("  songsleuth [global-options] delete <song_id>")
	fmt.Println("  songsleuth spectrogram <audio_file> [-out <png>] [-width <px>] [-height <px>] [-peaks]")
	fmt.Println("\nExamples:")
	fmt.Println("  songsleuth -db mydb.sqlite3 add song.mp3 -title \"Song\" -artist \"Artist\"")
	fmt.Println("  songsleuth -backend badger -db ./index add-dir ~/Music -workers 4")
	fmt.Println("  ffmpeg -i live.mp3 -f s16le -ac 1 -ar 44100 - | songsleuth listen -stdin -in-rate 44100")
	fmt.Println(strings.Repeat("-", 60))
}
