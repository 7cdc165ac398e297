package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(err)
	}
}

// the operator's wire format carries Spanish local dates, so every
// Year()/Month()/Day() manipulation has to happen in Madrid time no
// matter where our servers end up running
func Now() time.Time {
	return time.Now().In(Location)
}
