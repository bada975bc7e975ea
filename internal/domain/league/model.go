package league

// League is a competition tracked for import. Priority orders imports so the
// request budget is spent on the most valuable competitions first.
type League struct {
	ID       int64
	Name     string
	Country  string
	Enabled  bool
	Priority int
}
