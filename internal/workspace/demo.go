package workspace

import (
	"time"

	"github.com/starford/kenaz-notebook/internal/models"
)

// DemoTree is the first-start content: a welcome note with two dangling
// links and an empty second folder.
func DemoTree(now time.Time) models.Tree {
	return models.Tree{Folders: []models.Folder{
		{
			ID:   "f-allg",
			Name: "Allgemein",
			Notes: []models.Note{{
				ID:        "n-welcome",
				Title:     "Welcome 👋",
				Content:   "Hallo!\n\nDas ist deine erste Notiz.\n\nProbier mal [[Julius]] oder [[Mathe LK]].",
				Tags:      []string{"#ErsteNotiz"},
				CreatedAt: now,
			}},
			Subfolders: []models.Folder{},
		},
		{
			ID:         "f-schule",
			Name:       "Schule / Geschichte",
			Notes:      []models.Note{},
			Subfolders: []models.Folder{},
		},
	}}
}
