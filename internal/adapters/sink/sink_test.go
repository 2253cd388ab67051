package sink_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/nestmatch/internal/adapters/sink"
	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/parquet-go/parquet-go"
	. "github.com/smartystreets/goconvey/convey"
)

var results = []model.MatchResult{
	{SeekerID: 1, ItemID: 10, Score: 86},
	{SeekerID: 1, ItemID: 4, Score: 43.329999999},
	{SeekerID: 2, ItemID: 10, Score: 0},
}

func TestWriteCSV(t *testing.T) {
	Convey("Given ranked results", t, func() {
		var buf bytes.Buffer
		So(sink.WriteCSV(&buf, results), ShouldBeNil)

		Convey("Then scores are written with two decimals in table order", func() {
			So(buf.String(), ShouldEqual,
				"user_id,property_id,match_score\n1,10,86.00\n1,4,43.33\n2,10,0.00\n")
		})
	})
}

func TestWriteJSON(t *testing.T) {
	Convey("Given ranked results", t, func() {
		var buf bytes.Buffer
		So(sink.Write(&buf, sink.FormatJSON, results), ShouldBeNil)

		var rows []sink.Row
		So(json.Unmarshal(buf.Bytes(), &rows), ShouldBeNil)

		Convey("Then the rows keep their order and fields", func() {
			So(len(rows), ShouldEqual, 3)
			So(rows[0], ShouldResemble, sink.Row{UserID: 1, PropertyID: 10, MatchScore: 86})
			So(rows[2].UserID, ShouldEqual, 2)
		})
	})
}

func TestWriteParquet(t *testing.T) {
	Convey("Given ranked results", t, func() {
		var buf bytes.Buffer
		So(sink.WriteParquet(&buf, results), ShouldBeNil)

		rows, err := parquet.Read[sink.Row](bytes.NewReader(buf.Bytes()), int64(buf.Len()))

		Convey("Then the parquet file holds the same rows", func() {
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, sink.Rows(results))
		})
	})
}

func TestWriteFile(t *testing.T) {
	Convey("Given an output path in a missing directory", t, func() {
		path := filepath.Join(t.TempDir(), "outputs", "top_k_recommendations.csv")

		Convey("When the table is written", func() {
			err := sink.WriteFile(context.Background(), path, sink.FormatCSV, results)

			Convey("Then the file exists and no temp files remain", func() {
				So(err, ShouldBeNil)
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldStartWith, "user_id,property_id,match_score\n")
				entries, _ := os.ReadDir(filepath.Dir(path))
				So(len(entries), ShouldEqual, 1)
			})
		})

		Convey("When the format is unknown", func() {
			err := sink.WriteFile(context.Background(), path, "xml", results)

			Convey("Then nothing is published", func() {
				So(errors.Is(err, sink.ErrUnknownFormat), ShouldBeTrue)
				_, statErr := os.Stat(path)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})
}
