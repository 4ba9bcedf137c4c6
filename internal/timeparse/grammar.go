package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Components are the wall-clock fields read from a phrase. They carry no
// zone: the resolver recombines them in the user's zone, so a parse can never
// leak the server's offset into the result.
type Components struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int // 1..12 when Meridiem is set, 0..23 otherwise
	Minute int
	Second int

	Meridiem Meridiem
	HasDate  bool
	HasTime  bool

	// Exact is set when the phrase is only an offset from ref ("in 30
	// minutes"). It is the instant itself; rebuilding it from the wall fields
	// would be ambiguous inside a repeated DST hour.
	Exact time.Time
}

type dateKind int

const (
	dateNone     dateKind = iota
	dateFixed             // today, tomorrow, next <weekday>, explicit year
	dateWeekday           // bare or "this" weekday, may roll a week forward
	dateMonthDay          // month and day without a year, may roll a year forward
)

type clock struct {
	hour, minute, second int
	meridiem             Meridiem
}

type relative struct {
	months, days int
	dur          time.Duration
}

func (r *relative) add(unit string, n int) {
	switch unit {
	case "minute":
		r.dur += time.Duration(n) * time.Minute
	case "hour":
		r.dur += time.Duration(n) * time.Hour
	case "day":
		r.days += n
	case "week":
		r.days += 7 * n
	case "month":
		r.months += n
	case "year":
		r.months += 12 * n
	}
}

var (
	tokenReplacer = strings.NewReplacer(
		"a.m.", " am ", "p.m.", " pm ", "o'clock", " oclock ",
		",", " ", ";", " ", "!", " ", "?", " ", "@", " at ",
	)
	attachedMeridiem = regexp.MustCompile(`^(\d{1,2}(?::\d{2}){0,2})(am|pm|a|p)$`)
	ordinalPattern   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)$`)
	clockPattern     = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	slashDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?$`)
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var hourWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

var tomorrowWords = map[string]bool{"tomorrow": true, "tmrw": true, "tmr": true, "tmrow": true}

type parser struct {
	toks []string
	ref  time.Time

	kind  dateKind
	year  int
	month time.Month
	day   int

	rel    *relative
	clk    *clock
	period *clock
	cue    Meridiem
}

// Parse reads a natural-language phrase against ref, which must already be
// expressed in the target zone. ok is false when nothing in the phrase names
// a date or a time. Words that are not part of the grammar are skipped.
func Parse(phrase string, ref time.Time) (Components, bool) {
	p := &parser{toks: tokenize(phrase), ref: ref}
	for i := 0; i < len(p.toks); {
		if n := p.match(i); n > 0 {
			i += n
			continue
		}
		i++
	}
	return p.components()
}

func tokenize(phrase string) []string {
	s := tokenReplacer.Replace(strings.ToLower(phrase))
	var out []string
	for _, f := range strings.Fields(s) {
		f = strings.TrimRight(f, ".")
		if f == "" {
			continue
		}
		if m := attachedMeridiem.FindStringSubmatch(f); m != nil {
			mer := m[2]
			switch mer {
			case "a":
				mer = "am"
			case "p":
				mer = "pm"
			}
			out = append(out, m[1], mer)
			continue
		}
		out = append(out, f)
	}
	return out
}

func (p *parser) tok(i int) string {
	if i < 0 || i >= len(p.toks) {
		return ""
	}
	return p.toks[i]
}

func (p *parser) match(i int) int {
	matchers := []func(int) int{
		p.matchDayAfterTomorrow,
		p.matchDayWord,
		p.matchNextUnit,
		p.matchWeekday,
		p.matchIn,
		p.matchFromNow,
		p.matchMonthDate,
		p.matchNumericDate,
		p.matchClock,
		p.matchPeriod,
		p.matchNow,
	}
	for _, m := range matchers {
		if n := m(i); n > 0 {
			return n
		}
	}
	return 0
}

func (p *parser) dateTaken() bool {
	return p.kind != dateNone || p.rel != nil
}

func (p *parser) setDate(kind dateKind, t time.Time) {
	if p.dateTaken() {
		return
	}
	p.kind = kind
	p.year, p.month, p.day = t.Date()
}

func (p *parser) setCalendar(kind dateKind, year int, month time.Month, day int) bool {
	check := year
	if kind == dateMonthDay {
		check = 2000 // leap year, so Feb 29 survives until the year is known
	}
	if day < 1 || day > daysIn(month, check) {
		return false
	}
	if p.dateTaken() {
		return true
	}
	p.kind = kind
	p.year, p.month, p.day = year, month, day
	return true
}

func (p *parser) setRel(unit string, n int) {
	if p.dateTaken() {
		return
	}
	p.rel = &relative{}
	p.rel.add(unit, n)
}

func (p *parser) matchDayAfterTomorrow(i int) int {
	if p.tok(i) == "day" && p.tok(i+1) == "after" && tomorrowWords[p.tok(i+2)] {
		p.setDate(dateFixed, p.ref.AddDate(0, 0, 2))
		return 3
	}
	return 0
}

func (p *parser) matchDayWord(i int) int {
	t := p.tok(i)
	switch {
	case t == "today":
		p.setDate(dateFixed, p.ref)
	case t == "tonight":
		p.setDate(dateFixed, p.ref)
		p.setCue(MeridiemPM)
		if p.period == nil {
			p.period = &clock{hour: 8, meridiem: MeridiemPM}
		}
	case tomorrowWords[t]:
		p.setDate(dateFixed, p.ref.AddDate(0, 0, 1))
	case t == "yesterday":
		p.setDate(dateFixed, p.ref.AddDate(0, 0, -1))
	default:
		return 0
	}
	return 1
}

func (p *parser) matchNextUnit(i int) int {
	if p.tok(i) != "next" {
		return 0
	}
	switch u, _ := unitOf(p.tok(i + 1)); u {
	case "week", "month", "year":
		p.setRel(u, 1)
		return 2
	}
	return 0
}

func (p *parser) matchWeekday(i int) int {
	mod, j := "", i
	switch p.tok(i) {
	case "this", "next", "on", "coming":
		mod, j = p.tok(i), i+1
	}
	wd, ok := weekdays[p.tok(j)]
	if !ok {
		return 0
	}
	delta := (int(wd) - int(p.ref.Weekday()) + 7) % 7
	kind := dateWeekday
	if mod == "next" {
		if delta == 0 {
			delta = 7
		}
		kind = dateFixed
	}
	p.setDate(kind, p.ref.AddDate(0, 0, delta))
	return j - i + 1
}

func (p *parser) matchIn(i int) int {
	if p.tok(i) != "in" {
		return 0
	}
	if p.tok(i+1) == "half" && (p.tok(i+2) == "an" || p.tok(i+2) == "a") {
		if u, ok := unitOf(p.tok(i + 3)); ok && u == "hour" {
			if !p.dateTaken() {
				p.rel = &relative{dur: 30 * time.Minute}
			}
			return 4
		}
	}
	n, ok := amount(p.tok(i + 1))
	if !ok {
		return 0
	}
	u, ok := unitOf(p.tok(i + 2))
	if !ok {
		return 0
	}
	p.setRel(u, n)
	return 3
}

func (p *parser) matchFromNow(i int) int {
	n, ok := amount(p.tok(i))
	if !ok {
		return 0
	}
	u, ok := unitOf(p.tok(i + 1))
	if !ok {
		return 0
	}
	switch {
	case p.tok(i+2) == "from" && p.tok(i+3) == "now":
		p.setRel(u, n)
		return 4
	case p.tok(i+2) == "later":
		p.setRel(u, n)
		return 3
	}
	return 0
}

func (p *parser) matchMonthDate(i int) int {
	if mo, ok := months[p.tok(i)]; ok {
		d, ok := dayNumber(p.tok(i + 1))
		if !ok {
			return 0
		}
		if y, ok := yearNumber(p.tok(i + 2)); ok {
			if p.setCalendar(dateFixed, y, mo, d) {
				return 3
			}
			return 0
		}
		if p.setCalendar(dateMonthDay, p.ref.Year(), mo, d) {
			return 2
		}
		return 0
	}

	d, ok := dayNumber(p.tok(i))
	if !ok {
		return 0
	}
	j := i + 1
	if p.tok(j) == "of" {
		j++
	}
	mo, ok := months[p.tok(j)]
	if !ok {
		return 0
	}
	if y, ok := yearNumber(p.tok(j + 1)); ok {
		if p.setCalendar(dateFixed, y, mo, d) {
			return j - i + 2
		}
		return 0
	}
	if p.setCalendar(dateMonthDay, p.ref.Year(), mo, d) {
		return j - i + 1
	}
	return 0
}

func (p *parser) matchNumericDate(i int) int {
	t := p.tok(i)
	if m := isoDatePattern.FindStringSubmatch(t); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo < 1 || mo > 12 || !p.setCalendar(dateFixed, y, time.Month(mo), d) {
			return 0
		}
		return 1
	}
	m := slashDatePattern.FindStringSubmatch(t)
	if m == nil {
		return 0
	}
	mo, _ := strconv.Atoi(m[1])
	d, _ := strconv.Atoi(m[2])
	if mo < 1 || mo > 12 {
		return 0
	}
	if m[3] == "" {
		if !p.setCalendar(dateMonthDay, p.ref.Year(), time.Month(mo), d) {
			return 0
		}
		return 1
	}
	y, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		y += 2000
	}
	if !p.setCalendar(dateFixed, y, time.Month(mo), d) {
		return 0
	}
	return 1
}

func (p *parser) matchClock(i int) int {
	j, intro := i, false
	switch p.tok(i) {
	case "at", "by", "around":
		j, intro = i+1, true
	}

	t := p.tok(j)
	switch t {
	case "noon", "midday":
		p.setClock(clock{hour: 12, meridiem: MeridiemPM})
		return j - i + 1
	case "midnight":
		p.setClock(clock{hour: 12, meridiem: MeridiemAM})
		return j - i + 1
	}

	var c clock
	explicit := false
	if m := clockPattern.FindStringSubmatch(t); m != nil {
		c.hour, _ = strconv.Atoi(m[1])
		c.minute, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			c.second, _ = strconv.Atoi(m[3])
		}
		explicit = true
	} else if isDigits(t) && len(t) <= 2 {
		c.hour, _ = strconv.Atoi(t)
		if !intro && p.isDayToken(i-1) && c.hour >= 1 && c.hour <= 12 {
			intro = true
		}
	} else if h, ok := hourWords[t]; ok && intro {
		c.hour = h
	} else {
		return 0
	}

	k := j + 1
	oclock := false
	if p.tok(k) == "oclock" {
		oclock = true
		k++
	}
	switch p.tok(k) {
	case "am":
		c.meridiem = MeridiemAM
		k++
	case "pm":
		c.meridiem = MeridiemPM
		k++
	}
	if !explicit && !intro && !oclock && c.meridiem == MeridiemUnknown {
		return 0
	}

	if c.meridiem != MeridiemUnknown && (c.hour < 1 || c.hour > 12) {
		c.meridiem = MeridiemUnknown
	}
	if c.hour > 23 || c.minute > 59 || c.second > 59 {
		return 0
	}
	p.setClock(c)
	return k - i
}

// isDayToken reports whether token i names a day, so a bare number after it
// reads as an hour ("tomorrow 6").
func (p *parser) isDayToken(i int) bool {
	t := p.tok(i)
	if _, ok := weekdays[t]; ok {
		return true
	}
	return t == "today" || t == "tonight" || tomorrowWords[t]
}

func (p *parser) matchPeriod(i int) int {
	var c clock
	switch p.tok(i) {
	case "morning":
		c = clock{hour: 9, meridiem: MeridiemAM}
	case "afternoon":
		c = clock{hour: 3, meridiem: MeridiemPM}
	case "evening":
		c = clock{hour: 6, meridiem: MeridiemPM}
	case "night":
		c = clock{hour: 8, meridiem: MeridiemPM}
	default:
		return 0
	}
	p.setCue(c.meridiem)
	if p.period == nil {
		p.period = &c
	}
	return 1
}

func (p *parser) matchNow(i int) int {
	if p.tok(i) != "now" {
		return 0
	}
	if !p.dateTaken() {
		p.rel = &relative{}
	}
	return 1
}

func (p *parser) setClock(c clock) {
	if p.clk == nil {
		p.clk = &c
	}
}

func (p *parser) setCue(m Meridiem) {
	if p.cue == MeridiemUnknown {
		p.cue = m
	}
}

func (p *parser) components() (Components, bool) {
	if !p.dateTaken() && p.clk == nil && p.period == nil {
		return Components{}, false
	}

	ref := p.ref
	y, mo, d := ref.Date()
	hasDate := false
	var relClock *clock
	var exact time.Time

	switch {
	case p.rel != nil:
		t := ref
		if p.rel.months != 0 || p.rel.days != 0 {
			t = t.AddDate(0, p.rel.months, p.rel.days)
		}
		t = t.Add(p.rel.dur)
		y, mo, d = t.Date()
		hasDate = true
		relClock = &clock{hour: t.Hour(), minute: t.Minute(), second: t.Second()}
		if p.clk == nil && p.period == nil {
			exact = t
		}
	case p.kind != dateNone:
		y, mo, d = p.year, p.month, p.day
		hasDate = true
	}

	var c clock
	hasTime := true
	switch {
	case p.clk != nil:
		c = *p.clk
		if c.meridiem == MeridiemUnknown && p.cue != MeridiemUnknown && c.hour >= 1 && c.hour <= 12 {
			c.meridiem = p.cue
		}
	case p.period != nil:
		c = *p.period
	case relClock != nil:
		c = *relClock
	default:
		hasTime = false
	}

	if p.kind == dateMonthDay {
		y = yearWithDay(y, mo, d)
	}
	cand := time.Date(y, mo, d, To24(c.hour, c.meridiem), c.minute, c.second, 0, ref.Location())
	switch p.kind {
	case dateNone:
		if p.rel == nil && cand.Before(ref) {
			y, mo, d = cand.AddDate(0, 0, 1).Date()
		}
	case dateWeekday:
		if cand.Before(ref) {
			y, mo, d = cand.AddDate(0, 0, 7).Date()
		}
	case dateMonthDay:
		past := cand.Before(ref)
		if !hasTime {
			ry, rm, rd := ref.Date()
			past = cand.Before(time.Date(ry, rm, rd, 0, 0, 0, 0, ref.Location()))
		}
		if past {
			y = yearWithDay(y+1, mo, d)
		}
	}

	return Components{
		Year:     y,
		Month:    mo,
		Day:      d,
		Hour:     c.hour,
		Minute:   c.minute,
		Second:   c.second,
		Meridiem: c.meridiem,
		HasDate:  hasDate,
		HasTime:  hasTime,
		Exact:    exact,
	}, true
}

// yearWithDay returns the first year from y on that has the given day, so
// "feb 29" lands on the next leap year instead of rolling into March.
func yearWithDay(y int, mo time.Month, d int) int {
	for i := 0; i < 8 && d > daysIn(mo, y); i++ {
		y++
	}
	return y
}

func unitOf(tok string) (string, bool) {
	switch tok {
	case "minute", "minutes", "min", "mins":
		return "minute", true
	case "hour", "hours", "hr", "hrs":
		return "hour", true
	case "day", "days":
		return "day", true
	case "week", "weeks", "wk", "wks":
		return "week", true
	case "month", "months":
		return "month", true
	case "year", "years":
		return "year", true
	}
	return "", false
}

func amount(tok string) (int, bool) {
	switch tok {
	case "a", "an":
		return 1, true
	}
	if h, ok := hourWords[tok]; ok {
		return h, true
	}
	if !isDigits(tok) || len(tok) > 4 {
		return 0, false
	}
	n, err := strconv.Atoi(tok)
	return n, err == nil
}

func dayNumber(tok string) (int, bool) {
	if m := ordinalPattern.FindStringSubmatch(tok); m != nil {
		tok = m[1]
	}
	if !isDigits(tok) || len(tok) > 2 {
		return 0, false
	}
	d, _ := strconv.Atoi(tok)
	return d, d >= 1 && d <= 31
}

func yearNumber(tok string) (int, bool) {
	if !isDigits(tok) || len(tok) != 4 {
		return 0, false
	}
	y, _ := strconv.Atoi(tok)
	return y, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
