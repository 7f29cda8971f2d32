// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ajroetker/go-crystal/crystal/contrib/datagen"
	"github.com/ajroetker/go-crystal/crystal/contrib/pipeline"
	"github.com/ajroetker/go-crystal/crystal/contrib/project"
	"github.com/ajroetker/go-crystal/crystal/contrib/ssb"
	"github.com/ajroetker/go-crystal/crystal/device"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64)
}

// trials runs q cfg.Bench.Trials times, printing one timing line per trial
// and a summary table. It returns the result of the last trial.
func trials(cmd *cobra.Command, e *env, q pipeline.Query) (pipeline.Result, error) {
	out := cmd.OutOrStdout()
	p := pipeline.New(e.dev, e.cfg.Kernel)
	if e.cfg.Bench.Validate {
		q = q.WithValidation()
	}
	fmt.Fprintf(out, "%s: %s rows, %d builds\n", q.Name, humanize.Comma(int64(q.Rows)), len(q.Builds))

	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"trial", "result", "memset ms", "build ms", "probe ms", "total ms"})
	var res pipeline.Result
	for i := range e.cfg.Bench.Trials {
		var err error
		res, err = p.Run(q)
		if err != nil {
			return res, err
		}
		fmt.Fprintln(out, res.Timings)
		result := humanize.Comma(int64(res.Sum))
		if q.Grouped() {
			result = fmt.Sprintf("%d groups", len(res.Groups))
		}
		table.Append([]string{
			strconv.Itoa(i),
			result,
			ms(res.Timings.Memset),
			ms(res.Timings.Build),
			ms(res.Timings.Probe),
			ms(res.Timings.Total),
		})
		e.logger.Info("trial", zap.String("query", q.Name), zap.Int("trial", i), zap.Object("timings", res.Timings))
	}
	table.Render()
	return res, nil
}

func runJoin(cmd *cobra.Command, e *env) error {
	b := e.cfg.Bench
	g := datagen.New(b.Seed)
	dim := g.RelationPK(b.DimRows)
	fact := g.RelationFK(b.FactRows, b.DimRows)
	_, err := trials(cmd, e, ssb.HashJoin(dim, fact))
	return err
}

func (e *env) star() *datagen.Star {
	start := time.Now()
	s := datagen.New(e.cfg.Bench.Seed).Star(e.cfg.Bench.Star)
	e.logger.Info("generated star schema",
		zap.Int("orders", s.LineOrder.Len()),
		zap.Int("suppliers", s.Supplier.Len()),
		zap.Int("customers", s.Customer.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return s
}

func runScan(name string) func(*cobra.Command, *env) error {
	queries := map[string]func(*ssb.LineOrder) pipeline.Query{
		"q11": ssb.Q11,
		"q12": ssb.Q12,
		"q13": ssb.Q13,
	}
	return func(cmd *cobra.Command, e *env) error {
		_, err := trials(cmd, e, queries[name](e.star().LineOrder))
		return err
	}
}

func runWhere(cmd *cobra.Command, e *env) error {
	orders := e.star().LineOrder
	filters := make([]pipeline.Filter, 0, len(e.cfg.Bench.Where))
	for _, term := range e.cfg.Bench.Where {
		col, err := orders.Column(term.Column)
		if err != nil {
			return err
		}
		filters = append(filters, pipeline.Where(col, pipeline.Pred{Op: term.Op, Value: term.Value}))
	}
	_, err := trials(cmd, e, ssb.Scan(orders, filters...))
	return err
}

func (e *env) writeMetrics(w io.Writer) error {
	families, err := e.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
	}
	return nil
}

func runSemi(cmd *cobra.Command, e *env) error {
	s := e.star()
	_, err := trials(cmd, e, ssb.SemiJoinSum(s.LineOrder, s.Supplier, e.cfg.Bench.Region))
	return err
}

func runQ32(cmd *cobra.Command, e *env) error {
	s := e.star()
	res, err := trials(cmd, e, ssb.Q32(s.LineOrder, s.Supplier, s.Customer, s.Date, e.cfg.Bench.Q32))
	if err != nil {
		return err
	}
	printQ32(cmd.OutOrStdout(), ssb.Q32Rows(res.Groups), e.cfg.Bench.MaxRows)
	return nil
}

func printQ32(w io.Writer, rows []ssb.Q32Row, limit int) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"year", "c_city", "s_city", "revenue"})
	for i, r := range rows {
		if limit > 0 && i == limit {
			break
		}
		table.Append([]string{
			strconv.Itoa(int(r.Year)),
			strconv.Itoa(int(r.CustCity)),
			strconv.Itoa(int(r.SuppCity)),
			humanize.Comma(r.Revenue),
		})
	}
	table.SetFooter([]string{"", "", "rows", strconv.Itoa(len(rows))})
	table.Render()
}

func runProject(cmd *cobra.Command, e *env) error {
	out := cmd.OutOrStdout()
	n := e.cfg.Bench.FactRows
	release, err := e.dev.Reserve("project", int64(n)*4*3)
	if err != nil {
		return err
	}
	defer release()

	x, y, res := make([]float32, n), make([]float32, n), make([]float32, n)
	for i := range n {
		x[i] = float32(i%1000) / 1000
		y[i] = float32(i%777) / 777
	}
	c := project.DefaultCoefficients[float32]()
	kernels := []struct {
		name string
		fn   func() error
	}{
		{"linear", func() error { return project.Linear(e.dev, e.cfg.Kernel, c, x, y, res) }},
		{"sigmoid", func() error { return project.Sigmoid(e.dev, e.cfg.Kernel, c, x, y, res) }},
	}
	for _, k := range kernels {
		for range e.cfg.Bench.Trials {
			sw := device.StartStopwatch()
			if err := k.fn(); err != nil {
				return err
			}
			fmt.Fprintf(out, "{\"kernel\":%q,\"rows\":%d,\"time_total\":%s}\n", k.name, n, ms(sw.Total()))
		}
	}
	return nil
}
