// Copyright 2025 BARF Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"embed"
	"log"
	"os"

	"github.com/barflabs/barfhost/internal/bootstrap"
	"github.com/barflabs/barfhost/internal/store"
	"github.com/barflabs/barfhost/internal/streams"
	"github.com/barflabs/barfhost/internal/supervisor"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	// Bound before wails.Run, wired in OnStartup once the runtime context
	// exists.
	desktopApp := &DesktopApp{}

	err := wails.Run(&options.App{
		Title:  "BARF Host",
		Width:  1100,
		Height: 760,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 18, G: 18, B: 24, A: 1},
		OnStartup: func(ctx context.Context) {
			st, err := store.NewStore()
			if err != nil {
				log.Printf("FATAL: Failed to initialize settings store: %v", err)
				println("FATAL ERROR: Failed to initialize settings store. Please check logs and restart the application.")
				println("Error:", err.Error())
				os.Exit(1)
			}

			emitter := NewWailsEmitter(ctx)
			prompt := NewWailsPrompt(emitter)
			sup := supervisor.New()

			desktopApp.store = st
			desktopApp.sup = sup
			desktopApp.prompt = prompt
			desktopApp.relay = streams.NewRelay(emitter)
			desktopApp.orch = bootstrap.New(st, prompt, statusSink{emitter: emitter}, sup)

			desktopApp.Startup(ctx)
		},
		OnShutdown: desktopApp.Shutdown,
		Bind: []interface{}{
			desktopApp,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
