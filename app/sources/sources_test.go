package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps(now time.Time) Deps {
	return Deps{
		Client:   fetch.NewClient(fetch.Options{Timeout: 5 * time.Second}),
		Location: time.UTC,
		Now:      func() time.Time { return now },
	}
}

func testConfig(name string, baseURL string) Config {
	c := DefaultConfigs()[name]
	c.BaseURL = baseURL
	c.Delay = 0
	c.Timeout = 5
	return c
}

func build(t *testing.T, c Config, deps Deps) Source {
	t.Helper()
	s, err := DefaultRegistry().Build(c, deps)
	require.NoError(t, err)
	return s
}

func TestNosDeputesFallbackAndScrutins(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dossiers/date/json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/dossiers/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dossiers": [
			{"dossier": {"id": 42, "titre": "Loi Test", "url": "https://www.nosdeputes.fr/17/dossier/42", "date": "2025-10-20"}},
			{"dossier": {"titre": "Amendement n°12 au projet de loi"}},
			{"dossier": {"titre": "Loi du Sénat", "assemblee": "senat"}}
		]}`))
	})
	mux.HandleFunc("/17/scrutins/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scrutins": [{"scrutin": {"numero": 1234, "titre": "Scrutin public sur la loi", "date": "2025-09-01"}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := build(t, testConfig("nosdeputes", srv.URL), testDeps(time.Now()))

	batch, err := s.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Skipped)
	require.Len(t, batch.Items, 3)
	assert.Equal(t, 4, batch.Fetched())

	n := normalize.NewNormalizer(time.UTC)

	draft, ok := n.Run(batch.Items[0].Record, *batch.Items[0].Profile)
	require.True(t, ok)
	assert.Equal(t, "42", draft.ExternalID)
	assert.Equal(t, "Loi Test", draft.Title)
	assert.Equal(t, bill.SourceNosDeputes, draft.Source)
	require.NotNil(t, draft.VoteDatetime)

	senat, ok := n.Run(batch.Items[1].Record, *batch.Items[1].Profile)
	require.True(t, ok)
	assert.Equal(t, normalize.ChamberSenat, senat.Chamber)
	assert.Len(t, senat.ExternalID, 32)

	scrutin, ok := n.Run(batch.Items[2].Record, *batch.Items[2].Profile)
	require.True(t, ok)
	assert.Equal(t, "scrutin-1234", scrutin.ExternalID)
	assert.Equal(t, normalize.ChamberAssemblee, scrutin.Chamber)
}

func TestNosDeputesAllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := build(t, testConfig("nosdeputes", srv.URL), testDeps(time.Now()))

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, fetch.IsStatus(err, http.StatusInternalServerError))
}

func TestNosDeputesScrutinFailureIsNotFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dossiers/date/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dossiers_legislatif": [{"dossier": {"id": "7", "titre": "Loi Sept"}}]}`))
	})
	mux.HandleFunc("/17/scrutins/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := build(t, testConfig("nosdeputes", srv.URL), testDeps(time.Now()))

	batch, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.Items, 1)
}

func TestNosDeputesMaxItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dossiers/date/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dossiers_legislatif": [{"id": "1", "titre": "Un"}, {"id": "2", "titre": "Deux"}, {"id": "3", "titre": "Trois"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConfig("nosdeputes", srv.URL)
	c.MaxItems = 2
	delete(c.Endpoints, "scrutins")

	batch, err := build(t, c, testDeps(time.Now())).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.Items, 2)
}

func TestNosDeputesMaxItemsCoversScrutins(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dossiers/date/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dossiers_legislatif": [{"id": "1", "titre": "Un"}, {"id": "2", "titre": "Deux"}]}`))
	})
	mux.HandleFunc("/17/scrutins/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scrutins": [{"scrutin": {"numero": 1, "titre": "Scrutin un"}}, {"scrutin": {"numero": 2, "titre": "Scrutin deux"}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConfig("nosdeputes", srv.URL)
	c.MaxItems = 3

	batch, err := build(t, c, testDeps(time.Now())).Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, batch.Items, 3)
	assert.Same(t, &nosDeputesProfile, batch.Items[0].Profile)
	assert.Same(t, &nosDeputesProfile, batch.Items[1].Profile)
	assert.Same(t, &scrutinProfile, batch.Items[2].Profile)
}

const laFabriqueCSV = "\xEF\xBB\xBFTitre;URL du dossier;Date initiale;État du dossier;id;short_title;Thèmes\n" +
	"Projet de loi relatif au climat;https://www.lafabriquedelaloi.fr/articles.html?loi=pjl1;2025-06-01;En cours;pjl1;Loi climat;environnement\n" +
	"Projet de loi ancien;https://www.lafabriquedelaloi.fr/articles.html?loi=pjl2;2015-01-01;en cours;pjl2;;\n" +
	"Projet de loi adopté;https://www.lafabriquedelaloi.fr/articles.html?loi=pjl3;2025-01-01;Adopté;pjl3;;\n" +
	"Proposition de loi santé;;2025-05-01;;ppl4;Proposition de loi santé;santé,social\n" +
	"Proposition sans thème;;2025-05-02;déposé;ppl5;;\n"

func TestLaFabriqueFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dossiers.csv", r.URL.Path)
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))
		w.Write([]byte(laFabriqueCSV))
	}))
	defer srv.Close()

	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	s := build(t, testConfig("lafabrique", srv.URL), testDeps(now))

	batch, err := s.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Skipped)
	require.Len(t, batch.Items, 3)

	n := normalize.NewNormalizer(time.UTC)
	var drafts []bill.Draft
	for _, item := range batch.Items {
		d, ok := n.Run(item.Record, *item.Profile)
		require.True(t, ok)
		drafts = append(drafts, d)
	}

	assert.Equal(t, "pjl1", drafts[0].ExternalID)
	assert.Equal(t, "Loi climat", drafts[0].Summary)
	assert.Nil(t, drafts[0].VoteDatetime)
	assert.Equal(t, bill.LevelFrance, drafts[0].Level)

	assert.Equal(t, "Dossier législatif concernant : santé, social", drafts[1].Summary)
	assert.Equal(t, "Dossier législatif en cours d'examen à l'Assemblée nationale", drafts[2].Summary)
}

func TestLaFabriqueStalenessDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(laFabriqueCSV))
	}))
	defer srv.Close()

	c := testConfig("lafabrique", srv.URL)
	c.StaleDays = 0

	batch, err := build(t, c, testDeps(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.Items, 4)
	assert.Equal(t, 1, batch.Skipped)
}

func TestEuroparlRetriesWithJSONLD(t *testing.T) {
	var (
		mu      sync.Mutex
		accepts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		accepts = append(accepts, r.Header.Get("Accept"))
		mu.Unlock()
		assert.Equal(t, "LEGISLATIVE_PROCEDURE", r.URL.Query().Get("type"))
		if r.Header.Get("Accept") != "application/ld+json" {
			http.Error(w, "not acceptable", http.StatusNotAcceptable)
			return
		}
		w.Write([]byte(`{"data": [{
			"id": "2024/0001(COD)",
			"title": "Regulation on artificial intelligence 2024/0001(COD) COM(2024) 12",
			"reference": "52024PC0012",
			"date": "2025-11-05",
			"body": "COUNCIL"
		}]}`))
	}))
	defer srv.Close()

	c := testConfig("europarl", srv.URL)
	c.FallbackURL = ""
	s := build(t, c, testDeps(time.Now()))

	batch, err := s.Fetch(context.Background())
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"application/json", "application/ld+json"}, accepts)
	mu.Unlock()
	require.Len(t, batch.Items, 1)

	d, ok := normalize.NewNormalizer(time.UTC).Run(batch.Items[0].Record, *batch.Items[0].Profile)
	require.True(t, ok)
	assert.Equal(t, "Regulation on artificial intelligence", d.Title)
	assert.Equal(t, celexURL+"52024PC0012", d.FullTextURL)
	assert.Equal(t, bill.LevelEU, d.Level)
	assert.Equal(t, normalize.ChamberCouncil, d.Chamber)
	assert.Equal(t, "2024/0001(COD)", d.ExternalID)
}

func TestEuroparlFallsBackToRSS(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/documents", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>OEIL</title>
<item>
  <title>Digital services act</title>
  <link>https://oeil.secure.europarl.europa.eu/oeil/popups/ficheprocedure.do?reference=2020/0361(COD)</link>
  <guid>2020/0361(COD)</guid>
  <description>&lt;p&gt;Single market for digital services&lt;/p&gt;</description>
  <pubDate>Mon, 03 Nov 2025 10:00:00 +0100</pubDate>
</item>
</channel></rss>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConfig("europarl", srv.URL)
	c.FallbackURL = srv.URL + "/rss"

	batch, err := build(t, c, testDeps(time.Now())).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Items, 1)

	d, ok := normalize.NewNormalizer(time.UTC).Run(batch.Items[0].Record, *batch.Items[0].Profile)
	require.True(t, ok)
	assert.Equal(t, "Digital services act", d.Title)
	assert.Equal(t, "Single market for digital services", d.Summary)
	assert.Equal(t, normalize.ChamberParliament, d.Chamber)
	require.NotNil(t, d.VoteDatetime)
}

func TestEuroparlAllEndpointsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := testConfig("europarl", srv.URL)
	c.FallbackURL = ""

	_, err := build(t, c, testDeps(time.Now())).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestRegistry(t *testing.T) {
	configs := []Config{
		testConfig("nosdeputes", "http://localhost"),
		testConfig("europarl", "http://localhost"),
	}
	configs[1].Enabled = false

	built, err := DefaultRegistry().BuildEnabled(configs, testDeps(time.Now()))
	require.NoError(t, err)
	require.Len(t, built, 1)
	assert.Equal(t, "nosdeputes", built[0].Name())

	_, err = NewRegistry().Build(Config{Name: "unknown"}, Deps{})
	assert.Error(t, err)
}
