package sqlinline

const QSelectRecentPosts = `--sql 3b8f6c21-5a0e-4c77-9d8e-2f1a6b4c9e10
select
  title,
  slug,
  coalesce(url, ''),
  coalesce(excerpt, ''),
  coalesce(keyword, ''),
  published_at
from blog_posts
where published_at is not null
order by published_at desc
limit $1::int;
`

const QSelectRecentChangelog = `--sql 9c2e4d7a-1f38-4b6e-a5c0-7d9e3b2f8a41
select
  title,
  coalesce(summary, ''),
  coalesce(version, ''),
  coalesce(url, ''),
  published_at
from changelog_entries
order by published_at desc
limit $1::int;
`
