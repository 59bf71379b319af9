// Package stats collects triad frequencies from text.
//
// A [Counter] consumes the events of a [writer.Writer] and counts every run
// of three consecutive presses, so a text typed with n presses yields n-2
// triads. Whitespace buttons are left out and unknown characters break the
// sequence. Counters from several files merge by adding counts.
//
// Triad files are JSON documents listing button names:
//
//	{
//	  "keyboard": "ibmpc105",
//	  "layout": "qwerty",
//	  "presses": 3,
//	  "triads": [
//	    {"triad": [{"buttons": ["Dl1"]}, {"buttons": ["Dl2"]}, {"buttons": ["Dl3"]}], "count": 1}
//	  ]
//	}
package stats
