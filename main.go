package main

import (
	"bufio"
	"embed"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"

	hotelApp "hotelmap/internal/app"
	"hotelmap/internal/config"
	"hotelmap/internal/etl"
	"hotelmap/internal/secret"
)

//go:embed all:frontend/dist
var assets embed.FS

const usage = `Usage: hotelmap [command]

Commands:
  (none)                     open the desktop app
  mcp                        serve MCP tools on stdin/stdout
  serve                      serve the JSON API on $PORT
  export [-o path] [-clipboard]
                             write the map as JSON
  import <file|-clipboard>   replace the map with an export
  load [-floor n] [-mode append|replace] [-name col] [-icon col]
       [-x col] [-y col] [-path data.rooms] <file|url|-clipboard>
                             place a CSV or JSON room list on a floor
  slot-password [-delete] <driver>
                             store the external slot password read from stdin
`

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		runCommand(cfg, os.Args[1], os.Args[2:])
		return
	}

	app := hotelApp.New(cfg)
	size := hotelApp.InitialWindowSize(cfg)

	// macOS needs an Edit menu for Cmd+C/V/X/A to reach the WebView
	appMenu := menu.NewMenu()
	appMenu.Append(menu.EditMenu())

	err := wails.Run(&options.App{
		Title:     "Hotel Map",
		Width:     size.Width,
		Height:    size.Height,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 245, G: 245, B: 240, A: 1},
		Menu:             appMenu,
		OnStartup:        app.Startup,
		OnShutdown:       app.Shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				HideTitle:                  true,
				FullSizeContent:            true,
			},
			About: &mac.AboutInfo{
				Title:   "Hotel Map",
				Message: "Floor plans, markers and walking routes for hotel staff",
			},
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}

func runCommand(cfg *config.Config, cmd string, args []string) {
	switch cmd {
	case "mcp":
		hotelApp.ServeMCP(cfg)
	case "serve":
		hotelApp.ServeHTTP(cfg)
	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		out := fs.String("o", "", "output file or directory (default stdout)")
		toClipboard := fs.Bool("clipboard", false, "copy to the clipboard instead")
		fs.Parse(args)
		opts := hotelApp.ExportOptions{Path: *out, Clipboard: *toClipboard}
		if err := hotelApp.ExportCLI(cfg, opts, os.Stdout); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
	case "import":
		if len(args) != 1 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		report, err := hotelApp.ImportCLI(cfg, args[0])
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Printf("Imported %s\n", report)
	case "load":
		fs := flag.NewFlagSet("load", flag.ExitOnError)
		floor := fs.Int("floor", 1, "floor id")
		mode := fs.String("mode", "append", "append or replace")
		name := fs.String("name", "", "name column (default name)")
		icon := fs.String("icon", "", "icon column (default icon)")
		x := fs.String("x", "", "x column (default x)")
		y := fs.String("y", "", "y column (default y)")
		dataPath := fs.String("path", "", "dot path to the rows in a JSON document")
		fs.Parse(args)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		res, err := hotelApp.LoadCLI(cfg, hotelApp.LoadOptions{
			FloorID:  *floor,
			Mode:     *mode,
			Mapping:  etl.ColumnMapping{Name: *name, Icon: *icon, X: *x, Y: *y},
			Source:   fs.Arg(0),
			DataPath: *dataPath,
		})
		if err != nil {
			log.Fatalf("Load failed: %v", err)
		}
		fmt.Printf("Placed %d marker(s) from %d row(s)\n", len(res.Placed), res.RowsRead)
		for _, sk := range res.Skipped {
			fmt.Printf("  row %d skipped: %s\n", sk.Row, sk.Reason)
		}
	case "slot-password":
		fs := flag.NewFlagSet("slot-password", flag.ExitOnError)
		remove := fs.Bool("delete", false, "remove the stored password")
		fs.Parse(args)
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		driver := fs.Arg(0)
		var password string
		if !*remove {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				log.Fatalf("Read password: %v", err)
			}
			if password = strings.TrimRight(line, "\r\n"); password == "" {
				log.Fatal("Empty password; use -delete to remove it")
			}
		}
		store := secret.Default()
		if err := hotelApp.SlotPasswordCLI(store, driver, password); err != nil {
			log.Fatalf("Slot password: %v", err)
		}
		if _, inMemory := store.(*secret.EnvStore); inMemory && password != "" {
			fmt.Printf("No keychain on this system; set %s in the environment or .env\n",
				secret.EnvName(secret.SlotPasswordKey(driver)))
		}
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}
