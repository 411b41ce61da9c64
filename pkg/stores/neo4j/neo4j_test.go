package neo4j

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSynapsesFrom(t *testing.T) {
	Convey("Given a server returning two edges", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[{"columns":["b.id","s.weight","s.ownerId","s.createdAt"],"data":[
				{"row":["b",0.5,"owner-1","2026-01-01T00:00:00Z"]},
				{"row":["c",0.7,"owner-1","2026-01-01T00:00:00Z"]}
			]}],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "", "")
		synapses, err := client.SynapsesFrom(context.Background(), "a")

		Convey("Then both edges decode with the source filled in", func() {
			So(err, ShouldBeNil)
			So(len(synapses), ShouldEqual, 2)
			So(synapses[0].SourceID, ShouldEqual, "a")
			So(synapses[0].TargetID, ShouldEqual, "b")
			So(synapses[0].Weight, ShouldEqual, 0.5)
			So(synapses[1].TargetID, ShouldEqual, "c")
		})
	})
}

func TestGetSynapseAbsent(t *testing.T) {
	Convey("Given a server with no matching edge", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[{"columns":[],"data":[]}],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "", "")
		syn, err := client.GetSynapse(context.Background(), "a", "b")

		Convey("Then absence is nil without error", func() {
			So(err, ShouldBeNil)
			So(syn, ShouldBeNil)
		})
	})
}

func TestExecCypherSurfacesServerErrors(t *testing.T) {
	Convey("Given a server reporting a Cypher error", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[],"errors":[{"code":"Neo.ClientError.Statement.SyntaxError","message":"bad query"}]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "", "")
		_, err := client.ExecCypher(context.Background(), "NOT CYPHER", nil)

		Convey("Then the error carries the server code", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SyntaxError")
		})
	})
}

func TestCountSynapses(t *testing.T) {
	Convey("Given a server returning a count", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[{"columns":["count(s)"],"data":[{"row":[7]}]}],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "", "")
		count, err := client.CountSynapses(context.Background())

		Convey("Then the count decodes", func() {
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 7)
		})
	})
}
