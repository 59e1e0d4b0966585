package config

const (
	// DefaultDatabasePath is the default path for the reading tracker database
	DefaultDatabasePath = "./readstack.db"

	// DefaultCatalogBaseURL is the public OpenLibrary endpoint
	DefaultCatalogBaseURL = "https://openlibrary.org"
)
