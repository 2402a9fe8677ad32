package pcm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// CardDevice is one PCM stream direction on a sound card.
type CardDevice struct {
	ID          int
	Name        string
	Description string
	Capture     bool
}

func (d CardDevice) String() string {
	direction := "Playback"
	if d.Capture {
		direction = "Capture"
	}

	return fmt.Sprintf("  Device %d: %s (%s) [%s]", d.ID, d.Name, d.Description, direction)
}

// Card is a sound card as listed by procfs.
type Card struct {
	ID          int
	Name        string
	Description string
	Devices     []CardDevice
}

func (c Card) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Card %d: %s (%s)\n", c.ID, c.Name, c.Description)
	for _, dev := range c.Devices {
		sb.WriteString(dev.String() + "\n")
	}

	return sb.String()
}

var (
	cardLine = regexp.MustCompile(`^\s*(\d+)\s+\[\s*([^]]*?)\s*\]:\s*(.*)`)
	pcmLine  = regexp.MustCompile(`^(\d+)-(\d+): (.*?) :.*`)
)

// Cards lists sound cards from an asound procfs directory, normally /proc/asound.
func Cards(procDir string) ([]Card, error) {
	cards, err := os.ReadFile(filepath.Join(procDir, "cards"))
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}

	// A card without PCM devices has no pcm file entries; a missing file is not fatal.
	pcms, err := os.ReadFile(filepath.Join(procDir, "pcm"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	return parseCards(string(cards), string(pcms)), nil
}

func parseCards(cards, pcms string) []Card {
	byID := make(map[int]*Card)

	for _, line := range strings.Split(cards, "\n") {
		m := cardLine.FindStringSubmatch(line)
		if len(m) != 4 {
			continue
		}

		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		byID[id] = &Card{ID: id, Name: strings.TrimSpace(m[2]), Description: strings.TrimSpace(m[3])}
	}

	for _, line := range strings.Split(pcms, "\n") {
		m := pcmLine.FindStringSubmatch(line)
		if len(m) < 4 {
			continue
		}

		cardID, _ := strconv.Atoi(m[1])
		devID, _ := strconv.Atoi(m[2])

		card, ok := byID[cardID]
		if !ok {
			continue
		}

		desc := strings.TrimSpace(m[3])
		if strings.Contains(line, "playback") {
			card.Devices = append(card.Devices, CardDevice{ID: devID, Name: fmt.Sprintf("pcm%dp", devID), Description: desc})
		}

		if strings.Contains(line, "capture") {
			card.Devices = append(card.Devices, CardDevice{ID: devID, Name: fmt.Sprintf("pcm%dc", devID), Description: desc, Capture: true})
		}
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byID[id])
	}

	return out
}
