package markdown_test

import (
	"testing"

	"github.com/datamade/la-metro-translations/internal/markdown"
	"github.com/stretchr/testify/assert"
)

const structured = "# Minutes\n\nSee [the agenda](https://metro.net/agenda) and <https://metro.net>.\n\n" +
	"![img-0.jpeg]()\n\n| Item | Cost |\n|---|---|\n| Bus | 5 |\n\nEnd of Page 1\n"

func TestInspect(t *testing.T) {
	s := markdown.Inspect(structured)

	assert.Equal(t, 1, s.Images)
	assert.Equal(t, 1, s.Tables)
	assert.Equal(t, 4, s.TableCells)
	assert.Equal(t, 1, s.PageMarkers)
	assert.ElementsMatch(t, []string{"https://metro.net/agenda", "https://metro.net"}, s.Links)
}

func TestCompareStructure(t *testing.T) {
	t.Run("faithful translation", func(t *testing.T) {
		translated := "# Acta\n\nVea [la agenda](https://metro.net/agenda) y <https://metro.net>.\n\n" +
			"![img-0.jpeg]()\n\n| Punto | Costo |\n|---|---|\n| Autobús | 5 |\n\nEnd of Page 1\n"
		assert.Empty(t, markdown.CompareStructure(structured, translated))
	})

	t.Run("lost table and link", func(t *testing.T) {
		translated := "# Acta\n\nVea la agenda y <https://metro.net>.\n\n![img-0.jpeg]()\n\nEnd of Page 1\n"
		problems := markdown.CompareStructure(structured, translated)
		assert.Len(t, problems, 3)
		assert.Contains(t, problems, `link target "https://metro.net/agenda" missing from translation`)
	})
}
