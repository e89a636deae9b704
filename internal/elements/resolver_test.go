package elements

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/postbot/internal/testutil"
)

func newResolver(t *testing.T, html string) (*Resolver, *testutil.Driver) {
	t.Helper()
	d := testutil.NewDriver(html)
	return NewResolver(Default(), d), d
}

func clickTarget(t *testing.T, d *testutil.Driver) string {
	t.Helper()
	clicked := d.Clicked()
	require.NotEmpty(t, clicked)
	return clicked[len(clicked)-1]
}

func TestFindOnePrefersID(t *testing.T) {
	ctx := context.Background()
	r, d := newResolver(t, `<html><body>
		<textarea name="text" data-testid="by-selector"></textarea>
		<textarea id="new_post_text_input" data-testid="by-id"></textarea>
	</body></html>`)

	el, err := r.FindOne(ctx, "text_input")
	require.NoError(t, err)
	require.NoError(t, el.Click(ctx))
	require.Equal(t, "by-id", clickTarget(t, d))
}

func TestFindOneFallsBackToSelectors(t *testing.T) {
	ctx := context.Background()
	r, d := newResolver(t, `<html><body>
		<div contenteditable="true" data-testid="editable"></div>
		<textarea name="text" data-testid="textarea"></textarea>
	</body></html>`)

	el, err := r.FindOne(ctx, "text_input")
	require.NoError(t, err)
	require.NoError(t, el.Click(ctx))
	require.Equal(t, "textarea", clickTarget(t, d))
}

func TestFindOneNotFound(t *testing.T) {
	r, _ := newResolver(t, `<html><body></body></html>`)

	_, err := r.FindOne(context.Background(), "send_button")
	require.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "send_button", nf.Name)

	_, err = r.FindOne(context.Background(), "no_such_element")
	require.ErrorIs(t, err, ErrUnknownElement)
}

func TestFindManyFiltersHidden(t *testing.T) {
	ctx := context.Background()
	r, d := newResolver(t, testutil.HomePage)
	d.Hide(`[data-testid=expiration-period]:nth-of-type(2)`)

	els, err := r.FindMany(ctx, "expiration_periods")
	require.NoError(t, err)
	require.Len(t, els, 4)

	var labels []string
	for _, el := range els {
		text, err := el.Text(ctx)
		require.NoError(t, err)
		labels = append(labels, text)
	}
	require.Equal(t, []string{"1 day", "7 days", "30 days", "No limit"}, labels)
}

func TestFindManyAllHidden(t *testing.T) {
	r, d := newResolver(t, testutil.HomePage)
	d.Hide(`[data-testid=expiration-dialog]`)

	_, err := r.FindMany(context.Background(), "expiration_periods")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindManyDeduplicates(t *testing.T) {
	// both main_content candidates hit the same node
	r, _ := newResolver(t, `<html><body><main role="main" class="main-wrap"></main></body></html>`)

	els, err := r.FindMany(context.Background(), "main_content")
	require.NoError(t, err)
	require.Len(t, els, 1)
}

func TestFindClickableTieBreak(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{
			name: "visible enabled with text wins",
			html: `<button data-testid="send" disabled>Post</button>
				<button class="b-make-post__send" hidden data-testid="hidden">Post</button>
				<button class="b-make-post__send" data-testid="ok">Post now</button>`,
			want: "ok",
		},
		{
			name: "visible with text when none enabled",
			html: `<button class="b-make-post__send" data-testid="wrong-text">Send</button>
				<button class="b-make-post__send" disabled data-testid="disabled">Post</button>`,
			want: "disabled",
		},
		{
			name: "first match when nothing qualifies",
			html: `<button data-testid="send" hidden>Post</button>
				<button class="b-make-post__send" hidden data-testid="second">Post</button>`,
			want: "send",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			r, d := newResolver(t, "<html><body>"+c.html+"</body></html>")

			for range 3 {
				el, err := r.FindClickable(ctx, "send_button")
				require.NoError(t, err)
				require.NoError(t, el.Click(ctx))
				require.Equal(t, c.want, clickTarget(t, d))
			}
		})
	}
}

func TestFindClickableWithoutText(t *testing.T) {
	ctx := context.Background()
	r, d := newResolver(t, `<html><body>
		<button data-testid="more-options" disabled>More</button>
		<button data-testid="more-options">More</button>
	</body></html>`)

	el, err := r.FindClickable(ctx, "more_options")
	require.NoError(t, err)
	require.NoError(t, el.Click(ctx))

	enabled, err := el.Enabled(ctx)
	require.NoError(t, err)
	require.True(t, enabled)
	require.Equal(t, 1, d.Count("click", "more-options"))
}

func TestFindByTextIsExact(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t, testutil.HomePage)

	el, err := r.FindByText(ctx, "schedule_days", "2")
	require.NoError(t, err)
	text, err := el.Text(ctx)
	require.NoError(t, err)
	require.Equal(t, "2", text)

	el, err = r.FindByText(ctx, "expiration_periods", "no LIMIT")
	require.NoError(t, err)
	text, err = el.Text(ctx)
	require.NoError(t, err)
	require.Equal(t, "No limit", text)

	_, err = r.FindByText(ctx, "schedule_days", "31")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPresent(t *testing.T) {
	ctx := context.Background()
	r, d := newResolver(t, testutil.LoginPage)
	require.False(t, r.Present(ctx, "login_check"))

	d.SetHTML(testutil.HomePage)
	require.True(t, r.Present(ctx, "login_check"))
}

func TestTextMatches(t *testing.T) {
	require.True(t, TextMatches("  Post now ", "post"))
	require.False(t, TextMatches("Send", "post"))
	require.True(t, TextMatches(strings.ToUpper("sign in"), "Sign In"))
}
