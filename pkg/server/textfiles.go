package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TextFiles caches the text screens served at connection lifecycle points.
// Missing files are simply empty; the server falls back to built-in text.
type TextFiles struct {
	mu      sync.RWMutex
	Connect string // connect.txt: welcome screen
	Motd    string // motd.txt: post-login MOTD
	NewUser string // newuser.txt: new character message
	Quit    string // quit.txt: quit message
}

var trackedTextFiles = []string{"connect.txt", "motd.txt", "newuser.txt", "quit.txt"}

func (tf *TextFiles) GetConnect() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.Connect }
func (tf *TextFiles) GetMotd() string    { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.Motd }
func (tf *TextFiles) GetNewUser() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.NewUser }
func (tf *TextFiles) GetQuit() string    { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.Quit }

// loadFile reads a single text file, returning empty string on any error.
func loadFile(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// LoadTextFiles reads the tracked text files from dir. Missing files are
// not an error.
func LoadTextFiles(dir string) *TextFiles {
	tf := &TextFiles{}
	tf.loadAll(dir)
	return tf
}

func (tf *TextFiles) loadAll(dir string) int {
	tf.mu.Lock()
	defer tf.mu.Unlock()

	tf.Connect = loadFile(dir, "connect.txt")
	tf.Motd = loadFile(dir, "motd.txt")
	tf.NewUser = loadFile(dir, "newuser.txt")
	tf.Quit = loadFile(dir, "quit.txt")

	count := 0
	for _, v := range []string{tf.Connect, tf.Motd, tf.NewUser, tf.Quit} {
		if v != "" {
			count++
		}
	}
	log.Printf("texts: loaded %d text files from %s", count, dir)
	return count
}

// ReloadTextFiles reloads the cached text files from the configured TextDir
// and returns the count of non-empty files loaded.
func (g *Game) ReloadTextFiles() int {
	if g.TextDir == "" || g.Texts == nil {
		return 0
	}
	return g.Texts.loadAll(g.TextDir)
}

// NotifyWizards sends a message to all connected staff.
func (g *Game) NotifyWizards(msg string) {
	for _, dd := range g.Conns.AllDescriptors() {
		if dd.State != ConnConnected {
			continue
		}
		if Wizard(g, dd.Player) {
			dd.Send(msg)
		}
	}
}

// WatchTextFiles starts an fsnotify watcher on the text directory. Tracked
// files reload automatically on change; connected staff are told.
func (g *Game) WatchTextFiles() {
	if g.TextDir == "" || g.Texts == nil {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WARNING: could not start text file watcher: %v", err)
		return
	}

	tracked := make(map[string]bool)
	for _, name := range trackedTextFiles {
		tracked[name] = true
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				name := filepath.Base(event.Name)
				if !tracked[name] {
					continue
				}
				g.ReloadTextFiles()
				log.Printf("texts: reloaded after change to %s", name)
				g.NotifyWizards(fmt.Sprintf("GAME: Text file %s changed on disk; cache reloaded.", name))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("texts: watcher error: %v", err)
			}
		}
	}()

	if err := watcher.Add(g.TextDir); err != nil {
		log.Printf("WARNING: could not watch text directory %s: %v", g.TextDir, err)
		watcher.Close()
		return
	}
	log.Printf("texts: watching %s for changes", g.TextDir)
}
