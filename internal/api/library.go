package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxSearchLimit = 200

// requireIndex reports whether the library index is available, answering
// 503 when the daemon runs without it.
func (s *Server) requireIndex(c *gin.Context) bool {
	if s.index == nil {
		jsonError(c, http.StatusServiceUnavailable, "library index unavailable")
		return false
	}
	return true
}

func (s *Server) handleLibraryArtists(c *gin.Context) {
	if !s.requireIndex(c) {
		return
	}
	artists, err := s.index.Artists(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]ArtistView, 0, len(artists))
	for _, artist := range artists {
		views = append(views, ArtistView{Name: artist.Name, Albums: artist.Albums, Tracks: artist.Tracks})
	}
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views)})
}

func (s *Server) handleLibraryAlbums(c *gin.Context) {
	if !s.requireIndex(c) {
		return
	}
	artist := strings.TrimSpace(c.Query("artist"))
	if artist == "" {
		jsonError(c, http.StatusBadRequest, "artist is required")
		return
	}
	albums, err := s.index.Albums(c.Request.Context(), artist)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]AlbumView, 0, len(albums))
	for _, album := range albums {
		views = append(views, AlbumView{Artist: album.Artist, Name: album.Name, Year: album.Year, Tracks: album.Tracks})
	}
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views)})
}

func (s *Server) handleLibraryTracks(c *gin.Context) {
	if !s.requireIndex(c) {
		return
	}
	artist := strings.TrimSpace(c.Query("artist"))
	album := strings.TrimSpace(c.Query("album"))
	if artist == "" || album == "" {
		jsonError(c, http.StatusBadRequest, "artist and album are required")
		return
	}
	tracks, err := s.index.Tracks(c.Request.Context(), artist, album)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	views := FromTracks(tracks)
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views)})
}

func (s *Server) handleLibraryRecent(c *gin.Context) {
	if !s.requireIndex(c) {
		return
	}
	limit := parseBoundedInt(c.DefaultQuery("limit", ""), defaultPageLimit, maxSearchLimit)
	tracks, err := s.index.Recent(c.Request.Context(), limit)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	views := FromTracks(tracks)
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views)})
}

func (s *Server) handleLibrarySearch(c *gin.Context) {
	if !s.requireIndex(c) {
		return
	}
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		jsonError(c, http.StatusBadRequest, "q is required")
		return
	}
	limit := parseBoundedInt(c.DefaultQuery("limit", ""), defaultPageLimit, maxSearchLimit)
	tracks, err := s.index.Search(c.Request.Context(), query, limit)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	views := FromTracks(tracks)
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views), "query": query})
}

func (s *Server) handleLibraryStats(c *gin.Context) {
	if !s.requireIndex(c) {
		return
	}
	stats, err := s.index.Stats(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, LibraryCounts{
		Artists:    stats.Artists,
		Albums:     stats.Albums,
		Tracks:     stats.Tracks,
		TotalBytes: stats.TotalBytes,
	})
}
