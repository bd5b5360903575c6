// cmd/tools/catalog-indexer/main.go
//
// Loads the pump catalog, validates it against its schema, bulk-indexes
// every pump into Elasticsearch for the search-catalog worker, and optionally
// upserts the flattened rows into the catalog_pumps postgres table.
package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/elastic/go-elasticsearch/v8"
	_ "github.com/lib/pq"

	"pump-advisor-workers/pkg/catalog"
)

func main() {
	catalogPath := flag.String("catalog", "configs/pump-catalog.json", "Path to the pump catalog JSON")
	schemaPath := flag.String("schema", "configs/pump-catalog.schema.json", "Path to the catalog JSON schema")
	esURL := flag.String("es", "http://localhost:9200", "Elasticsearch URL")
	indexName := flag.String("index", "pump-catalog", "Target index name")
	recreate := flag.Bool("recreate", false, "Delete and recreate the index before indexing")
	pgDSN := flag.String("pg", "", "Postgres DSN for the catalog_pumps table (empty skips the upsert)")
	flag.Parse()

	cat, err := catalog.Load(*catalogPath, *schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog load failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded catalog version %s with %d pumps\n", cat.Version, len(cat.Pumps))

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{*esURL},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "elasticsearch client failed: %v\n", err)
		os.Exit(1)
	}

	if *recreate {
		res, err := client.Indices.Delete([]string{*indexName},
			client.Indices.Delete.WithIgnoreUnavailable(true))
		if err != nil {
			fmt.Fprintf(os.Stderr, "index delete failed: %v\n", err)
			os.Exit(1)
		}
		res.Body.Close()

		res, err = client.Indices.Create(*indexName,
			client.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))))
		if err != nil {
			fmt.Fprintf(os.Stderr, "index create failed: %v\n", err)
			os.Exit(1)
		}
		if res.IsError() {
			fmt.Fprintf(os.Stderr, "index create failed: %s\n", res.String())
			os.Exit(1)
		}
		res.Body.Close()
		fmt.Printf("Recreated index %s\n", *indexName)
	}

	var buf bytes.Buffer
	for _, pump := range cat.Pumps {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": *indexName, "_id": pump.ID},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal bulk meta for %s: %v\n", pump.ID, err)
			os.Exit(1)
		}
		docLine, err := json.Marshal(indexDoc(pump))
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal pump %s: %v\n", pump.ID, err)
			os.Exit(1)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := client.Bulk(bytes.NewReader(buf.Bytes()), client.Bulk.WithRefresh("wait_for"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bulk index failed: %v\n", err)
		os.Exit(1)
	}
	defer res.Body.Close()

	if res.IsError() {
		fmt.Fprintf(os.Stderr, "bulk index failed: %s\n", res.String())
		os.Exit(1)
	}

	var bulkResponse struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		fmt.Fprintf(os.Stderr, "decode bulk response: %v\n", err)
		os.Exit(1)
	}

	indexed := 0
	for _, item := range bulkResponse.Items {
		for _, result := range item {
			if result.Error != nil {
				fmt.Fprintf(os.Stderr, "pump %s: %s: %s\n", result.ID, result.Error.Type, result.Error.Reason)
				continue
			}
			indexed++
		}
	}

	if bulkResponse.Errors {
		fmt.Fprintf(os.Stderr, "indexed %d of %d pumps with errors\n", indexed, len(cat.Pumps))
		os.Exit(1)
	}
	fmt.Printf("Indexed %d pumps into %s\n", indexed, *indexName)

	if *pgDSN != "" {
		if err := syncPostgres(*pgDSN, cat); err != nil {
			fmt.Fprintf(os.Stderr, "postgres sync failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Upserted %d pumps into catalog_pumps\n", len(cat.Pumps))
	}
}

// syncPostgres mirrors the flattened catalog into the catalog_pumps table so
// reporting queries don't need Elasticsearch.
func syncPostgres(dsn string, cat *catalog.Catalog) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS catalog_pumps (
		id VARCHAR(255) PRIMARY KEY,
		model VARCHAR(255) NOT NULL,
		family VARCHAR(255),
		category VARCHAR(100),
		max_flow_m3h DOUBLE PRECISION,
		max_head_m DOUBLE PRECISION,
		power_kw DOUBLE PRECISION,
		price_range_usd VARCHAR(100),
		catalog_version VARCHAR(50),
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create catalog_pumps: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO catalog_pumps
		(id, model, family, category, max_flow_m3h, max_head_m, power_kw, price_range_usd, catalog_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			model = EXCLUDED.model,
			family = EXCLUDED.family,
			category = EXCLUDED.category,
			max_flow_m3h = EXCLUDED.max_flow_m3h,
			max_head_m = EXCLUDED.max_head_m,
			power_kw = EXCLUDED.power_kw,
			price_range_usd = EXCLUDED.price_range_usd,
			catalog_version = EXCLUDED.catalog_version,
			updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, pump := range cat.Pumps {
		_, err := stmt.Exec(
			pump.ID, pump.Model, pump.Family, pump.Category,
			nullableSpec(pump, catalog.SpecMaxFlowM3H),
			nullableSpec(pump, catalog.SpecMaxHeadM),
			nullableSpec(pump, catalog.SpecPowerKW),
			pump.PriceRangeUSD, cat.Version,
		)
		if err != nil {
			return fmt.Errorf("upsert pump %s: %w", pump.ID, err)
		}
	}
	return nil
}

func nullableSpec(pump catalog.Pump, key string) interface{} {
	if v, ok := pump.Spec(key); ok {
		return v
	}
	return nil
}

// indexDoc flattens a pump for indexing. Spec values may be strings like
// "2 x 40 m³/h" in the source data; the index needs plain floats for range
// filters, so those are normalized through SafeNumber.
func indexDoc(pump catalog.Pump) map[string]interface{} {
	specs := make(map[string]interface{}, len(pump.Specs))
	for key, value := range pump.Specs {
		if num, ok := catalog.SafeNumber(value); ok {
			specs[key] = num
		} else {
			specs[key] = value
		}
	}

	return map[string]interface{}{
		"id":              pump.ID,
		"model":           pump.Model,
		"family":          pump.Family,
		"category":        pump.Category,
		"type":            pump.Type,
		"applications":    pump.Applications,
		"features":        pump.Features,
		"specs":           specs,
		"price_range_usd": pump.PriceRangeUSD,
	}
}

const indexMapping = `{
	"mappings": {
		"properties": {
			"id": {"type": "keyword"},
			"model": {"type": "text"},
			"family": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"category": {"type": "keyword"},
			"type": {"type": "text"},
			"applications": {"type": "text"},
			"features": {"type": "text"},
			"specs": {
				"properties": {
					"max_flow_m3h": {"type": "float"},
					"max_head_m": {"type": "float"},
					"power_kw": {"type": "float"},
					"eei": {"type": "float"}
				}
			},
			"price_range_usd": {"type": "keyword"}
		}
	}
}`
