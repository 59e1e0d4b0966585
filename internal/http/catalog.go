package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readstack/internal/browse"
	"github.com/mrlokans/readstack/internal/remote"
)

// CatalogController serves catalog browsing. Requests share the browse
// trackers, so a newer search supersedes one still in flight.
type CatalogController struct {
	browse *browse.Service
}

func NewCatalogController(svc *browse.Service) *CatalogController {
	return &CatalogController{browse: svc}
}

// GenresResponse is the cached genre overview.
type GenresResponse struct {
	Loading bool            `json:"loading"`
	Genres  browse.GenreMap `json:"genres"`
}

// Search handles GET /api/catalog/search?q=
func (cc *CatalogController) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondBadRequest(c, "q is required")
		return
	}
	respondRemote(c, cc.browse.Search(c.Request.Context(), query))
}

// Work handles GET /api/catalog/works/:id
func (cc *CatalogController) Work(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	respondRemote(c, cc.browse.Details(c.Request.Context(), id))
}

// Subject handles GET /api/catalog/subjects/:subject
func (cc *CatalogController) Subject(c *gin.Context) {
	subject := strings.TrimSpace(c.Param("subject"))
	if subject == "" {
		respondBadRequest(c, "subject is required")
		return
	}
	respondRemote(c, cc.browse.SubjectBooks(c.Request.Context(), subject))
}

// Genres handles GET /api/catalog/genres. The overview is fetched on first
// use and when refresh=true; otherwise the cached mapping is returned.
func (cc *CatalogController) Genres(c *gin.Context) {
	fetcher := cc.browse.Genres()

	genres := fetcher.Books()
	if c.Query("refresh") == "true" || (len(genres) == 0 && !fetcher.Loading()) {
		genres = fetcher.Fetch(c.Request.Context())
	}

	c.JSON(http.StatusOK, GenresResponse{
		Loading: fetcher.Loading(),
		Genres:  genres,
	})
}

// respondRemote sends a request state: 200 on success, 502 with the user
// message when the catalog call failed.
func respondRemote[T any](c *gin.Context, resp remote.Response[T]) {
	if resp.OK() {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusBadGateway, resp)
}
