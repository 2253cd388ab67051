package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	service "github.com/okian/nestmatch/internal/app"
	"github.com/okian/nestmatch/internal/config"
	"github.com/okian/nestmatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const usersCSV = `User ID,Budget,Bedrooms,Bathrooms,Living Area (sq ft),Qualitative Description
1,500000,3,2,,Quiet street near a park
`

const propertiesCSV = `Property ID,Price,Bedrooms,Bathrooms,Living Area (sq ft),Qualitative Description
10,480000,3,2,1800,House on a quiet street by the park
11,700000,5,3,3500,Large modern villa
`

func writeFixture(dir string) (cfgPath, outPath string) {
	users := filepath.Join(dir, "users.csv")
	props := filepath.Join(dir, "properties.csv")
	outPath = filepath.Join(dir, "out.csv")
	cfgPath = filepath.Join(dir, "config.yaml")
	_ = os.WriteFile(users, []byte(usersCSV), 0o600)
	_ = os.WriteFile(props, []byte(propertiesCSV), 0o600)
	yaml := strings.Join([]string{
		"top_k: 1",
		"worker_count: 2",
		"log_level: error",
		"input:",
		"  workbook: \"\"",
		"  seekers_csv: " + users,
		"  items_csv: " + props,
		"output:",
		"  path: " + outPath,
		"",
	}, "\n")
	_ = os.WriteFile(cfgPath, []byte(yaml), 0o600)
	return cfgPath, outPath
}

func TestRunCommand(t *testing.T) {
	Convey("Given a configuration file over CSV inputs", t, func() {
		cfgPath, outPath := writeFixture(t.TempDir())

		Convey("When the run command executes", func() {
			err := newApp().Run([]string{"nestmatch", "--config", cfgPath, "run"})

			Convey("Then the Top-K table is written", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(outPath)
				So(readErr, ShouldBeNil)
				So(string(data), ShouldStartWith, "user_id,property_id,match_score\n1,10,")
			})
		})

		Convey("When the log level flag is not a known level", func() {
			err := newApp().Run([]string{"nestmatch", "--config", cfgPath, "--log-level", "loud", "run"})

			Convey("Then logging falls back to info and the batch still runs", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(outPath)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the config file does not exist", func() {
			err := newApp().Run([]string{"nestmatch", "--config", cfgPath + ".missing", "run"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRouter(t *testing.T) {
	Convey("Given a router over a finished batch", t, func() {
		cfgPath, _ := writeFixture(t.TempDir())
		cfg, err := config.LoadFile(context.Background(), cfgPath)
		So(err, ShouldBeNil)
		svc, err := service.New(context.Background(), cfg, service.WithLogger(logger.Nop()))
		So(err, ShouldBeNil)
		defer svc.Close()
		_, err = svc.Run(context.Background())
		So(err, ShouldBeNil)

		h := newRouter(svc, logger.Nop())

		for _, path := range []string{"/", "/api-docs", "/openapi.yaml", "/matches", "/matches/1", "/stats"} {
			Convey("Then "+path+" is served", func() {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		}
	})
}
